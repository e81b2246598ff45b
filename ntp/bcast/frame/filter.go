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
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/ntpbcast/ntp/protocol"
)

// DefaultPort is the NTP port
const DefaultPort = 123

// Filter returns NTP packets from raw frames of the Source
type Filter struct {
	source Source
	port   layers.UDPPort
	stats  Stats
	buf    []byte

	parser  *gopacket.DecodingLayerParser
	eth     layers.Ethernet
	ip4     layers.IPv4
	udp     layers.UDP
	decoded []gopacket.LayerType
}

// NewFilter returns Filter for UDP destination port. stats may be nil
func NewFilter(source Source, port int, stats Stats) *Filter {
	if port == 0 {
		port = DefaultPort
	}
	if stats == nil {
		stats = noopStats{}
	}
	f := &Filter{
		source:  source,
		port:    layers.UDPPort(port),
		stats:   stats,
		buf:     make([]byte, MaxFrameSize),
		decoded: make([]gopacket.LayerType, 0, 3),
	}
	f.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &f.eth, &f.ip4, &f.udp)
	// anything above UDP, or not IPv4 at all, is checked below
	f.parser.IgnoreUnsupported = true
	return f
}

// Receive goes through pending frames and returns the first NTP packet.
// It returns nil packet without blocking when nothing is pending.
func (f *Filter) Receive() (*protocol.Packet, error) {
	for {
		n, err := f.source.TryReceive(f.buf)
		if err != nil {
			if errors.Is(err, ErrNoFrame) {
				return nil, nil
			}
			if errors.Is(err, ErrFramesLost) || errors.Is(err, ErrOversized) {
				log.Debugf("frame source: %v", err)
				f.stats.IncFramesTransient()
				return nil, nil
			}
			return nil, fmt.Errorf("receiving frame: %w", err)
		}
		if p := f.decode(f.buf[:n]); p != nil {
			return p, nil
		}
		f.stats.IncFramesDiscarded()
	}
}

// Wait blocks until a frame is pending, timeout expires or ctx is done
func (f *Filter) Wait(ctx context.Context, timeout time.Duration) error {
	return f.source.Wait(ctx, timeout)
}

func (f *Filter) has(t gopacket.LayerType) bool {
	for _, d := range f.decoded {
		if d == t {
			return true
		}
	}
	return false
}

func (f *Filter) decode(data []byte) *protocol.Packet {
	if err := f.parser.DecodeLayers(data, &f.decoded); err != nil {
		log.Tracef("discarding frame: %v", err)
		return nil
	}
	if !f.has(layers.LayerTypeEthernet) || f.eth.EthernetType != layers.EthernetTypeIPv4 {
		return nil
	}
	if !f.has(layers.LayerTypeIPv4) || f.ip4.Protocol != layers.IPProtocolUDP {
		return nil
	}
	if !f.has(layers.LayerTypeUDP) || f.udp.DstPort != f.port {
		return nil
	}
	p, err := protocol.BytesToPacket(f.udp.Payload)
	if err != nil {
		log.Tracef("discarding frame: %v", err)
		return nil
	}
	return p
}
