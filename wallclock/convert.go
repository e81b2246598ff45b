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

package wallclock

import (
	"fmt"
	"time"
)

// Converter converts between WallClock and unix seconds at a given tick resolution
type Converter struct {
	Hertz int
}

// NewConverter returns converter for given resolution, 0 means DefaultHertz
func NewConverter(hertz int) Converter {
	if hertz <= 0 {
		hertz = DefaultHertz
	}
	return Converter{Hertz: hertz}
}

func (c Converter) hertz() int {
	if c.Hertz <= 0 {
		return DefaultHertz
	}
	return c.Hertz
}

// LocalSeconds returns seconds since 1970 in local time, ignoring ticks
func (c Converter) LocalSeconds(w WallClock) (int64, error) {
	if !w.HasDate() {
		return 0, ErrNoDate
	}
	if !w.HasTime() {
		return 0, ErrNoTime
	}
	days := int64(w.Day-1) + 365*int64(w.Year) + int64((w.Year+1)/4)
	secs := int64(MinutesPerDay-w.Minutes)*SecondsPerMinute + int64(SecondsPerMinute-w.Seconds)
	return days*SecondsPerDay + secs, nil
}

// ToUnix returns UTC unix seconds for local wall clock value at given UTC offset
func (c Converter) ToUnix(w WallClock, offset int32) (int64, error) {
	local, err := c.LocalSeconds(w)
	if err != nil {
		return 0, err
	}
	return local - int64(offset), nil
}

// ToUnixNano is ToUnix which also returns nanoseconds elapsed within the second
func (c Converter) ToUnixNano(w WallClock, offset int32) (sec int64, nsec int64, err error) {
	sec, err = c.ToUnix(w, offset)
	if err != nil {
		return 0, 0, err
	}
	h := c.hertz()
	nsec = int64(ElapsedTicks(w.Ticks, h)) * time.Second.Nanoseconds() / int64(h)
	return sec, nsec, nil
}

// ToTime returns time.Time for local wall clock value at given UTC offset
func (c Converter) ToTime(w WallClock, offset int32) (time.Time, error) {
	sec, nsec, err := c.ToUnixNano(w, offset)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, nsec), nil
}

// FromUnix returns local wall clock value for UTC unix seconds at given UTC offset.
// Ticks are set to full budget, which means exact second.
func (c Converter) FromUnix(sec int64, offset int32) (WallClock, error) {
	local := sec + int64(offset)
	if local < 0 {
		return WallClock{}, fmt.Errorf("%w: %d", ErrOutOfRange, sec)
	}
	d := int(local / SecondsPerDay)
	t := int(local % SecondsPerDay)

	w := WallClock{
		Minutes: MinutesPerDay - t/SecondsPerMinute,
		Seconds: SecondsPerMinute - t%SecondsPerMinute,
		Ticks:   c.hertz(),
	}
	// the easiest way to get year and day-in-year is with a loop
	for y := 0; ; y++ {
		if y > MaxYear {
			return WallClock{}, fmt.Errorf("%w: %d", ErrOutOfRange, sec)
		}
		ylen := YearLength(y)
		if d < ylen {
			w.Year = y
			break
		}
		d -= ylen
	}
	w.Day = d + 1
	return w, nil
}

// FromUnixNano is FromUnix with a sub-second part.
// Ticks are rounded half-up; rounding to the whole second advances the time by one second.
func (c Converter) FromUnixNano(sec, nsec int64, offset int32) (WallClock, error) {
	sec += nsec / time.Second.Nanoseconds()
	nsec %= time.Second.Nanoseconds()
	if nsec < 0 {
		sec--
		nsec += time.Second.Nanoseconds()
	}
	ticks, carry := CountdownTicks(uint64(nsec), uint64(time.Second.Nanoseconds()), c.hertz())
	if carry {
		sec++
	}
	w, err := c.FromUnix(sec, offset)
	if err != nil {
		return WallClock{}, err
	}
	w.Ticks = ticks
	return w, nil
}

// FromTime is FromUnixNano for time.Time
func (c Converter) FromTime(t time.Time, offset int32) (WallClock, error) {
	return c.FromUnixNano(t.Unix(), int64(t.Nanosecond()), offset)
}
