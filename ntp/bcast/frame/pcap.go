/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package frame

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// packetHandle abstracts packet handles provided by pcapgo.Reader and pcapgo.NGReader
type packetHandle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Capture replays frames from .pcap or .pcapng file.
// TryReceive returns io.EOF after the last frame.
type Capture struct {
	f      *os.File
	handle packetHandle
}

// OpenCapture opens capture file with Ethernet link type
func OpenCapture(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	// try NGReader, if it fails - fall back to Reader
	var handle packetHandle
	handle, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		if _, ierr := f.Seek(0, 0); ierr != nil {
			f.Close()
			return nil, fmt.Errorf("seeking in %s: %w", path, ierr)
		}
		handle, err = pcapgo.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	if handle.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("unsupported link type %s in %s", handle.LinkType(), path)
	}
	return &Capture{f: f, handle: handle}, nil
}

// TryReceive implements Source
func (c *Capture) TryReceive(buf []byte) (int, error) {
	data, _, err := c.handle.ReadPacketData()
	if err != nil {
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, fmt.Errorf("%w: %d bytes", ErrOversized, len(data))
	}
	return copy(buf, data), nil
}

// Wait implements Source. Frames are always pending
func (c *Capture) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Close implements Source
func (c *Capture) Close() error {
	return c.f.Close()
}
