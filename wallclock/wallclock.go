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
Package wallclock implements the countdown wall-clock representation and
its conversion to and from linear epoch seconds.

A WallClock keeps the date as a year offset from 1970 plus a 1-based day of
the year, and the time of day as units remaining until the next boundary:

	Minutes - minutes until next midnight (1..1440)
	Seconds - seconds until next minute   (1..60)
	Ticks   - ticks until next second     (0..Hertz)

So midnight exactly is Minutes=1440, Seconds=60, Ticks=Hertz.
Elapsed-time and countdown values are never mixed: conversion happens only
in this package, in one direction at a time.
*/
package wallclock

import (
	"errors"
	"fmt"
)

// DefaultHertz is the default tick resolution
const DefaultHertz = 60

const (
	// SecondsPerDay is the number of seconds in a day
	SecondsPerDay = 86400
	// MinutesPerDay is the number of minutes in a day
	MinutesPerDay = 1440
	// SecondsPerMinute is the number of seconds in a minute
	SecondsPerMinute = 60
	// MaxYear is the last supported year offset (2099).
	// The leap rule below has no century exception, which is fine until 2100.
	MaxYear = 129
	// BaseYear is the calendar year of Year offset 0
	BaseYear = 1970
)

// ErrNoDate is returned when the value carries the "no date" sentinel
var ErrNoDate = errors.New("no date present")

// ErrNoTime is returned when the value carries the "no time" sentinel
var ErrNoTime = errors.New("no time present")

// ErrOutOfRange is returned for instants outside of supported years
var ErrOutOfRange = errors.New("time is outside of supported range")

// WallClock is a countdown style local date and time
type WallClock struct {
	Year    int // years since 1970
	Day     int // day of year, 1 based. 0 means no date
	Minutes int // minutes until next midnight. 0 means no time
	Seconds int // seconds until next minute
	Ticks   int // ticks until next second
}

// Date returns packed date as Year*1000 + Day
func (w WallClock) Date() int {
	return w.Year*1000 + w.Day
}

// HasDate checks the value is not the "no date" sentinel
func (w WallClock) HasDate() bool {
	return w.Day != 0
}

// HasTime checks the value is not the "no time" sentinel
func (w WallClock) HasTime() bool {
	return w.Minutes != 0
}

// String returns raw field representation
func (w WallClock) String() string {
	return fmt.Sprintf("date=%d minutes=%d seconds=%d ticks=%d", w.Date(), w.Minutes, w.Seconds, w.Ticks)
}

// YearLength returns number of days in the year with given offset from 1970.
// 1972 is offset 2, so every offset with y%4 == 2 is a long year.
func YearLength(year int) int {
	if year%4 == 2 {
		return 366
	}
	return 365
}

// Validate checks all the countdown fields are in their ranges
func (w WallClock) Validate(hertz int) error {
	if !w.HasDate() {
		return ErrNoDate
	}
	if !w.HasTime() {
		return ErrNoTime
	}
	if w.Year < 0 || w.Year > MaxYear {
		return fmt.Errorf("%w: year offset %d", ErrOutOfRange, w.Year)
	}
	if w.Day < 1 || w.Day > YearLength(w.Year) {
		return fmt.Errorf("day %d is out of range for year %d", w.Day, BaseYear+w.Year)
	}
	if w.Minutes < 1 || w.Minutes > MinutesPerDay {
		return fmt.Errorf("minutes %d is out of range", w.Minutes)
	}
	if w.Seconds < 1 || w.Seconds > SecondsPerMinute {
		return fmt.Errorf("seconds %d is out of range", w.Seconds)
	}
	if w.Ticks < 0 || w.Ticks > hertz {
		return fmt.Errorf("ticks %d is out of range for %dHz", w.Ticks, hertz)
	}
	return nil
}

// CountdownTicks converts elapsed part of a second, expressed as elapsed/scale,
// into ticks remaining to the next second at given resolution.
// Rounding is half-up. If it rounds up to a whole second, ticks is set to
// the full budget and carry is true: the caller must advance the second.
func CountdownTicks(elapsed, scale uint64, hertz int) (ticks int, carry bool) {
	h := uint64(hertz)
	ticks = hertz - int((elapsed*h+scale/2)/scale)
	if ticks <= 0 {
		return hertz, true
	}
	return ticks, false
}

// ElapsedTicks returns number of ticks elapsed since the start of the second.
// Both 0 and full budget mean "exact second".
func ElapsedTicks(ticks, hertz int) int {
	if ticks == 0 || ticks >= hertz {
		return 0
	}
	return hertz - ticks
}
