//go:build !linux

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
	"time"
)

var errNotSupported = errors.New("packet sockets are only supported on linux")

// Socket is AF_PACKET socket, only available on linux
type Socket struct{}

// Open is not supported
func Open(_ string, _ int) (*Socket, error) {
	return nil, errNotSupported
}

// EnableBroadcast is not supported
func (s *Socket) EnableBroadcast() error { return errNotSupported }

// AttachFilter is not supported
func (s *Socket) AttachFilter(_ uint16) error { return errNotSupported }

// TryReceive is not supported
func (s *Socket) TryReceive(_ []byte) (int, error) { return 0, errNotSupported }

// Wait is not supported
func (s *Socket) Wait(_ context.Context, _ time.Duration) error { return errNotSupported }

// Close is not supported
func (s *Socket) Close() error { return nil }
