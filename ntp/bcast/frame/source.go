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

/*
Package frame receives raw Ethernet frames and picks NTP broadcast
packets out of them.
*/
package frame

import (
	"context"
	"errors"
	"time"
)

// MaxFrameSize is the receive buffer size for one frame
const MaxFrameSize = 1536

// DefaultBufferCount is the default number of frames the kernel may queue for us.
// One would do, but this allows a burst of other broadcasts without overrun.
const DefaultBufferCount = 5

// Transient source conditions. Filter treats them as "nothing received"
var (
	ErrNoFrame    = errors.New("no frame pending")
	ErrFramesLost = errors.New("frames were lost")
	ErrOversized  = errors.New("oversized frame")
)

// Source is a non-blocking raw Ethernet frame source
type Source interface {
	// TryReceive copies one pending frame into buf and returns its length
	TryReceive(buf []byte) (int, error)
	// Wait blocks until a frame is pending, timeout expires or ctx is done
	Wait(ctx context.Context, timeout time.Duration) error
	Close() error
}

// Stats is a metric collection interface
type Stats interface {
	IncFramesDiscarded()
	IncFramesTransient()
}

type noopStats struct{}

func (noopStats) IncFramesDiscarded() {}
func (noopStats) IncFramesTransient() {}
