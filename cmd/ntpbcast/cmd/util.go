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

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

var utcZone = tzrules.Zone{Abbrev: "UTC"}

// loadTable reads rule table, empty path means UTC all the time
func loadTable(path string) (*tzrules.Table, error) {
	if path == "" {
		return &tzrules.Table{Before: utcZone}, nil
	}
	return tzrules.Load(path)
}

// parseInstant accepts unix seconds or RFC3339 time, empty string is now
func parseInstant(s string) (int64, error) {
	if s == "" {
		return time.Now().Unix(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sec, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither unix seconds nor RFC3339 time", s)
	}
	return t.Unix(), nil
}

// parseWall parses "year,day,minutes,seconds,ticks" countdown value
func parseWall(s string) (wallclock.WallClock, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return wallclock.WallClock{}, fmt.Errorf("want year,day,minutes,seconds,ticks, got %q", s)
	}
	var v [5]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return wallclock.WallClock{}, fmt.Errorf("parsing %q: %w", p, err)
		}
		v[i] = n
	}
	return wallclock.WallClock{Year: v[0], Day: v[1], Minutes: v[2], Seconds: v[3], Ticks: v[4]}, nil
}

// formatInstant prints instant bound of zone window
func formatInstant(sec int64) string {
	switch sec {
	case tzrules.MinInstant:
		return "-inf"
	case tzrules.MaxInstant:
		return "+inf"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
