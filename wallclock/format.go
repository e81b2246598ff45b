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
	"strings"
)

// Lengths of formatted fields
const (
	DateLen     = 11 // 14-Oct-2026
	TimeLen     = 8  // 12:05 pm
	TimeHMSLen  = 14 // 12:05:01.50 pm
	noneMessage = "none"
)

var months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func monthDays(year int) [12]int {
	days := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if YearLength(year) == 366 {
		days[1] = 29
	}
	return days
}

// FormatDate returns US style date, like "14-Oct-2026"
func FormatDate(w WallClock) string {
	if !w.HasDate() {
		return fmt.Sprintf("%*s", DateLen, noneMessage)
	}
	day := w.Day
	mon := 0
	for days := monthDays(w.Year); mon < 11; mon++ {
		if day <= days[mon] {
			break
		}
		day -= days[mon]
	}
	return fmt.Sprintf("%2d-%3s-%04d", day, months[mon], BaseYear+w.Year)
}

// clockHour converts minutes since midnight to 12 hour clock
func clockHour(elapsed int) (hour int, minute int, m byte) {
	hour = elapsed / 60
	minute = elapsed % 60
	m = 'a'
	if hour >= 12 {
		hour -= 12
		m = 'p'
	}
	if hour == 0 {
		hour = 12
	}
	return hour, minute, m
}

// FormatTime returns am/pm style time, like "12:05 pm"
func FormatTime(w WallClock) string {
	if !w.HasTime() {
		return fmt.Sprintf("%*s", TimeLen, noneMessage)
	}
	hour, minute, m := clockHour(MinutesPerDay - w.Minutes)
	return fmt.Sprintf("%2d:%02d %cm", hour, minute, m)
}

// FormatHMS returns am/pm style time with seconds and centiseconds, like "12:05:01.50 pm"
func (c Converter) FormatHMS(w WallClock) string {
	if !w.HasTime() {
		return fmt.Sprintf("%*s", TimeHMSLen, noneMessage)
	}
	h := c.hertz()
	hour, minute, m := clockHour(MinutesPerDay - w.Minutes)
	sec := SecondsPerMinute - w.Seconds
	// centiseconds, properly rounded
	centis := (ElapsedTicks(w.Ticks, h)*100 + h/2) / h
	if centis > 99 {
		centis = 99
	}
	return fmt.Sprintf("%2d:%02d:%02d.%02d %cm", hour, minute, sec, centis, m)
}

// FormatZone returns zone name with numeric offset, like "CET (1:00)"
func FormatZone(abbrev string, offset int32) string {
	sign := ""
	hm := offset / 60
	if hm < 0 {
		sign = "-"
		hm = -hm
	}
	return fmt.Sprintf("%s (%s%d:%02d)", abbrev, sign, hm/60, hm%60)
}

// Format returns full date, time and zone string
func (c Converter) Format(w WallClock, abbrev string, offset int32) string {
	return strings.Join([]string{FormatDate(w), c.FormatHMS(w), FormatZone(abbrev, offset)}, " ")
}
