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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	// Unix
	usec  = int64(1585147599)
	unsec = int64(631495778)
	// NTP
	nsec  = uint32(3794136399)
	nfrac = uint32(2712253714)

	// Packet response
	ntpResponse = &Packet{
		Settings:       36,
		Stratum:        1,
		Poll:           3,
		Precision:      -32,
		RootDelay:      0,
		RootDispersion: 10,
		ReferenceID:    1178738720,
		RefTimeSec:     3794209800,
		RefTimeFrac:    0,
		OrigTimeSec:    3794210679,
		OrigTimeFrac:   2718216404,
		RxTimeSec:      3794210679,
		RxTimeFrac:     2718375472,
		TxTimeSec:      3794210679,
		TxTimeFrac:     2719753478,
	}
	// Same response as above in bytes
	ntpResponseBytes = []byte{36, 1, 3, 224, 0, 0, 0, 0, 0, 0, 0, 10, 70, 66, 32, 32, 226, 39, 12, 8, 0, 0, 0, 0, 226, 39, 15, 119, 162, 4, 176, 212, 226, 39, 15, 119, 162, 7, 30, 48, 226, 39, 15, 119, 162, 28, 37, 6}
)

// Testing conversion so if Packet structure changes we notice
func TestResponseConversion(t *testing.T) {
	bytes, err := ntpResponse.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, ntpResponseBytes, bytes)
	require.Equal(t, PacketSizeBytes, len(bytes))
}

func TestBytesToPacket(t *testing.T) {
	packet, err := BytesToPacket(ntpResponseBytes)
	require.NoError(t, err)
	require.Equal(t, ntpResponse, packet)
}

func TestBytesToPacketExtensions(t *testing.T) {
	data := append(append([]byte{}, ntpResponseBytes...), 0, 4, 0, 8, 1, 2, 3, 4)
	packet, err := BytesToPacket(data)
	require.NoError(t, err)
	require.Equal(t, ntpResponse, packet)
}

func TestBytesToPacketError(t *testing.T) {
	_, err := BytesToPacket([]byte{})
	require.ErrorIs(t, err, ErrShortPacket)
	_, err = BytesToPacket(ntpResponseBytes[:47])
	require.ErrorIs(t, err, ErrShortPacket)
}

func TestSettings(t *testing.T) {
	require.Equal(t, uint8(0), ntpResponse.Leap())
	require.Equal(t, uint8(4), ntpResponse.Version())
	require.Equal(t, uint8(ModeServer), ntpResponse.Mode())

	bcast := &Packet{Settings: 0x25}
	require.Equal(t, uint8(ModeBroadcast), bcast.Mode())
	require.Equal(t, uint8(4), bcast.Version())
}

func TestRefID(t *testing.T) {
	require.Equal(t, "FB", ntpResponse.RefID())

	gps := &Packet{Stratum: 1, ReferenceID: 0x47505300}
	require.Equal(t, "GPS", gps.RefID())

	secondary := &Packet{Stratum: 2, ReferenceID: 0x0a000001}
	require.Equal(t, "10.0.0.1", secondary.RefID())
	require.Equal(t, "version 0 mode 0 stratum 2 source 10.0.0.1", secondary.String())
}

func TestNewTimestamp(t *testing.T) {
	ts := NewTimestamp(time.Unix(usec, unsec))
	require.Equal(t, Timestamp{Seconds: nsec, Fraction: nfrac}, ts)
}

func TestTimestampTime(t *testing.T) {
	testtime := Timestamp{Seconds: nsec, Fraction: nfrac}.Time()

	require.Equal(t, usec, testtime.Unix())
	// +1ns is a rounding issue
	require.Equal(t, unsec, int64(testtime.Nanosecond())+1)
}

func TestTimestampUnix(t *testing.T) {
	require.Equal(t, int64(0), Timestamp{Seconds: UnixBase}.Unix())
	require.Equal(t, usec, Timestamp{Seconds: nsec}.Unix())
	// era 1
	require.Equal(t, int64(2085978496), Timestamp{Seconds: 0}.Unix())
	require.Equal(t, int64(2085978496+3600), Timestamp{Seconds: 3600}.Unix())
	// last second of era 0
	require.Equal(t, int64(2085978495), Timestamp{Seconds: 0xffffffff}.Unix())
}

func TestTimestampTicks(t *testing.T) {
	sec, ticks := Timestamp{Seconds: nsec, Fraction: 0x80000000}.Ticks(60)
	require.Equal(t, usec, sec)
	require.Equal(t, 30, ticks)

	sec, ticks = Timestamp{Seconds: nsec, Fraction: 0xffff0000}.Ticks(60)
	require.Equal(t, usec+1, sec)
	require.Equal(t, 60, ticks)

	sec, ticks = Timestamp{Seconds: nsec}.Ticks(60)
	require.Equal(t, usec, sec)
	require.Equal(t, 60, ticks)

	// low 16 bits are ignored
	require.Equal(t, uint16(0x8000), Timestamp{Fraction: 0x8000ffff}.Fraction16())
}

func TestSetTransmit(t *testing.T) {
	p := &Packet{}
	ts := Timestamp{Seconds: nsec, Fraction: nfrac}
	p.SetTransmit(ts)
	require.Equal(t, ts, p.Transmit())
}
