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

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
)

// PacketSizeBytes sets the size of NTP packet
const PacketSizeBytes = 48

// ErrShortPacket is returned when there is less than PacketSizeBytes of data
var ErrShortPacket = errors.New("ntp packet is too short")

// Packet is an NTPv4 packet
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc958
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                     Reference Timestamp (64)                  +
  |                                                               |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Origin Timestamp (64)                    +
  |                                                               |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Receive Timestamp (64)                   +
  |                                                               |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Transmit Timestamp (64)                  +
  |                                                               |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

Extension fields and MAC may follow, they are ignored.

 0 1 2 3 4 5 6 7
+-+-+-+-+-+-+-+-+
|LI | VN  |Mode |
+-+-+-+-+-+-+-+-+
 0 0 1 0 0 1 0 1

Setting = LI | VN  |Mode. Broadcast example:
00 100 101 (or 0x25)
|  |   +-- broadcast mode (5)
|  + ----- version (4)
+ -------- leap indicator, 0 no warning
*/
type Packet struct {
	Settings       uint8  // leap indicator, version number and mode
	Stratum        uint8  // stratum
	Poll           int8   // poll. Power of 2
	Precision      int8   // precision. Power of 2
	RootDelay      uint32 // total delay to the reference clock
	RootDispersion uint32 // total dispersion to the reference clock
	ReferenceID    uint32 // identifier of server or a reference clock
	RefTimeSec     uint32 // last time local clock was updated sec
	RefTimeFrac    uint32 // last time local clock was updated frac
	OrigTimeSec    uint32 // client time sec
	OrigTimeFrac   uint32 // client time frac
	RxTimeSec      uint32 // receive time sec
	RxTimeFrac     uint32 // receive time frac
	TxTimeSec      uint32 // transmit time sec
	TxTimeFrac     uint32 // transmit time frac
}

// Association modes
const (
	ModeServer    = 4
	ModeBroadcast = 5
)

// Leap returns leap indicator
func (p *Packet) Leap() uint8 {
	return p.Settings >> 6
}

// Version returns protocol version number
func (p *Packet) Version() uint8 {
	return (p.Settings >> 3) & 0x7
}

// Mode returns association mode
func (p *Packet) Mode() uint8 {
	return p.Settings & 0x7
}

// Transmit returns transmit timestamp
func (p *Packet) Transmit() Timestamp {
	return Timestamp{Seconds: p.TxTimeSec, Fraction: p.TxTimeFrac}
}

// SetTransmit sets transmit timestamp
func (p *Packet) SetTransmit(ts Timestamp) {
	p.TxTimeSec = ts.Seconds
	p.TxTimeFrac = ts.Fraction
}

// RefID returns printable reference id.
// Primary servers carry 4 character ASCII code, others the IPv4 address of their source.
func (p *Packet) RefID() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, p.ReferenceID)
	if p.Stratum <= 1 {
		return strings.TrimRight(string(b), "\x00 ")
	}
	return net.IP(b).String()
}

// String returns short description used in logs
func (p *Packet) String() string {
	return fmt.Sprintf("version %d mode %d stratum %d source %s", p.Version(), p.Mode(), p.Stratum, p.RefID())
}

// MarshalBinary converts Packet to []bytes
func (p *Packet) MarshalBinary() ([]byte, error) {
	var b bytes.Buffer
	err := binary.Write(&b, binary.BigEndian, p)
	return b.Bytes(), err
}

// UnmarshalBinary fills Packet from the first PacketSizeBytes of data
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < PacketSizeBytes {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	return binary.Read(bytes.NewReader(data[:PacketSizeBytes]), binary.BigEndian, p)
}

// BytesToPacket converts []bytes to Packet
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	packet := &Packet{}
	err := packet.UnmarshalBinary(ntpPacketBytes)
	return packet, err
}
