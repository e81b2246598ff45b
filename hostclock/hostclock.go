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
Package hostclock reads and sets the host wall clock in countdown form.

SystemClock talks to CLOCK_REALTIME, converting between unix time and
wallclock.WallClock with the UTC offset currently in force.
It can either set the clock (clock_settime) or step it by the difference
between the new and current time (clock_adjtime with ADJ_SETOFFSET).

FreeRunningClock reads the system clock the same way but never changes it.
*/
package hostclock

import (
	"errors"
	"fmt"

	"github.com/facebook/ntpbcast/wallclock"
)

// maxReadAttempts limits ReadStable retries
const maxReadAttempts = 100

// ErrUnstable is returned when clock readings never agree
var ErrUnstable = errors.New("clock readings did not settle")

// Accessor is the host wall clock
type Accessor interface {
	Read() (wallclock.WallClock, error)
	Write(w wallclock.WallClock) error
}

// OffsetSource provides UTC offset in seconds currently in force
type OffsetSource interface {
	Offset() int32
}

// FixedOffset is OffsetSource with constant offset
type FixedOffset int32

// Offset implements OffsetSource
func (o FixedOffset) Offset() int32 {
	return int32(o)
}

// sameSecond compares everything but ticks
func sameSecond(a, b wallclock.WallClock) bool {
	a.Ticks = 0
	b.Ticks = 0
	return a == b
}

// ReadStable reads the clock until two consecutive readings fall into the same second.
// This protects against rollover between reading different fields.
func ReadStable(read func() (wallclock.WallClock, error)) (wallclock.WallClock, error) {
	prev, err := read()
	if err != nil {
		return wallclock.WallClock{}, err
	}
	for i := 0; i < maxReadAttempts; i++ {
		cur, err := read()
		if err != nil {
			return wallclock.WallClock{}, err
		}
		if sameSecond(prev, cur) {
			return cur, nil
		}
		prev = cur
	}
	return wallclock.WallClock{}, fmt.Errorf("%w after %d attempts", ErrUnstable, maxReadAttempts)
}
