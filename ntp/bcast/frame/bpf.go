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
	"golang.org/x/net/bpf"
)

// offsets within Ethernet frame
const (
	offEtherType = 12
	offIPv4      = 14
	offFragment  = offIPv4 + 6
	offProtocol  = offIPv4 + 9
	// from the start of UDP header, after the IPv4 header of variable length
	offDstPort = offIPv4 + 2
)

const (
	etherTypeIPv4 = 0x0800
	protoUDP      = 17
	// more fragments flag and fragment offset
	fragmentMask = 0x3fff
	acceptAll    = 0x40000
)

// Program returns socket filter accepting only unfragmented IPv4 UDP frames to port.
// It's the same check Filter does, done in kernel to avoid waking up for every broadcast.
func Program(port uint16) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: offEtherType, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 8},
		bpf.LoadAbsolute{Off: offProtocol, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoUDP, SkipFalse: 6},
		bpf.LoadAbsolute{Off: offFragment, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: fragmentMask, SkipTrue: 4},
		// X = IPv4 header length
		bpf.LoadMemShift{Off: offIPv4},
		bpf.LoadIndirect{Off: offDstPort, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipFalse: 1},
		bpf.RetConstant{Val: acceptAll},
		bpf.RetConstant{Val: 0},
	}
}
