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
Package protocol implements ntp packet and basic functions to work with.
It provides quick and transparent translation between 48 bytes and
simply accessible struct, plus the fixed point timestamp.
*/
package protocol

import (
	"fmt"
	"time"

	"github.com/facebook/ntpbcast/wallclock"
)

// UnixBase is the difference between NTP (1900) and Unix (1970) epoch in seconds
const UnixBase = 2208988800

// NanosecondsToUnix is the difference between NTP and Unix epoch in NS
const NanosecondsToUnix = int64(UnixBase * 1000000000)

// first second of NTP era 1, in era 0 numbering
const eraLength = int64(1) << 32

// Timestamp is NTP fixed point 32.32 timestamp
type Timestamp struct {
	Seconds  uint32
	Fraction uint32
}

// NewTimestamp is converting Unix time to sec and frac NTP format
func NewTimestamp(t time.Time) Timestamp {
	nsec := t.UnixNano() + NanosecondsToUnix
	sec := nsec / time.Second.Nanoseconds()
	return Timestamp{
		Seconds:  uint32(sec),
		Fraction: uint32((nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds()),
	}
}

// Unix returns unix seconds.
// Seconds with the most significant bit clear belong to era 1 (after 7 Feb 2036).
func (ts Timestamp) Unix() int64 {
	sec := int64(ts.Seconds)
	if ts.Seconds&0x80000000 == 0 {
		sec += eraLength
	}
	return sec - UnixBase
}

// Fraction16 returns the top 16 bits of the fraction
func (ts Timestamp) Fraction16() uint16 {
	return uint16(ts.Fraction >> 16)
}

// Time is converting NTP seconds and fractions into Unix time
func (ts Timestamp) Time() time.Time {
	nanos := (int64(ts.Fraction) * time.Second.Nanoseconds()) >> 32 // convert fractional to nanos
	return time.Unix(ts.Unix(), nanos)
}

// Ticks returns unix seconds and countdown ticks to the next second at given resolution.
// Only 16 bits of the fraction are used. Fraction rounding up to a whole
// second gives full tick budget and advances the second.
func (ts Timestamp) Ticks(hertz int) (sec int64, ticks int) {
	sec = ts.Unix()
	ticks, carry := wallclock.CountdownTicks(uint64(ts.Fraction16()), 1<<16, hertz)
	if carry {
		sec++
	}
	return sec, ticks
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%08x", ts.Seconds, ts.Fraction)
}
