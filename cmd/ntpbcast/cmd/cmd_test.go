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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

var (
	cet  = tzrules.Zone{Offset: 3600, Abbrev: "CET"}
	cest = tzrules.Zone{Offset: 7200, IsDST: true, Abbrev: "CEST"}
)

func writeZoneFile(t *testing.T) string {
	table := &tzrules.Table{
		Before: cet,
		Transitions: []tzrules.Transition{
			{At: 1774746000, Zone: cest},
			{At: 1792890000, Zone: cet},
		},
	}
	path := filepath.Join(t.TempDir(), "Amsterdam")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tzrules.Write(f, '2', table))
	require.NoError(t, f.Close())
	return path
}

func TestParseInstant(t *testing.T) {
	sec, err := parseInstant("1791985530")
	require.NoError(t, err)
	require.Equal(t, int64(1791985530), sec)

	sec, err = parseInstant("2026-10-14T15:45:30+02:00")
	require.NoError(t, err)
	require.Equal(t, int64(1791985530), sec)

	_, err = parseInstant("yesterday")
	require.Error(t, err)
}

func TestParseWall(t *testing.T) {
	w, err := parseWall("56, 287,495,30,30")
	require.NoError(t, err)
	require.Equal(t, wallclock.WallClock{Year: 56, Day: 287, Minutes: 495, Seconds: 30, Ticks: 30}, w)

	_, err = parseWall("56,287")
	require.Error(t, err)
	_, err = parseWall("56,287,x,30,30")
	require.Error(t, err)
}

func TestFormatInstant(t *testing.T) {
	require.Equal(t, "-inf", formatInstant(tzrules.MinInstant))
	require.Equal(t, "+inf", formatInstant(tzrules.MaxInstant))
	require.Equal(t, "2026-10-25T01:00:00Z", formatInstant(1792890000))
}

func TestLoadTableUTC(t *testing.T) {
	table, err := loadTable("")
	require.NoError(t, err)
	require.Equal(t, utcZone, table.Lookup(0).Current)
	require.Empty(t, table.Transitions)
}

func TestTZShow(t *testing.T) {
	color.NoColor = true
	path := writeZoneFile(t)
	var out bytes.Buffer
	require.NoError(t, tzShow(&out, path, "2026-10-14T13:45:30Z"))
	want := "14-Oct-2026  3:45:30.00 pm CEST (2:00) DST\n" +
		"in force from 2026-03-29T01:00:00Z until 2026-10-25T01:00:00Z\n" +
		"next: CET (1:00)\n"
	require.Equal(t, want, out.String())

	out.Reset()
	require.NoError(t, tzShow(&out, path, "2026-12-01T00:00:00Z"))
	require.Contains(t, out.String(), "until +inf\nnext: none\n")
}

func TestTransitionRows(t *testing.T) {
	table, err := loadTable(writeZoneFile(t))
	require.NoError(t, err)
	rows := transitionRows(table)
	require.Equal(t, [][]string{
		{"-inf", "CET", "3600", "CET (1:00)", "false"},
		{"2026-03-29T01:00:00Z", "CEST", "7200", "CEST (2:00)", "true"},
		{"2026-10-25T01:00:00Z", "CET", "3600", "CET (1:00)", "false"},
	}, rows)

	var out bytes.Buffer
	require.NoError(t, tzDump(&out, writeZoneFile(t)))
	require.Contains(t, out.String(), "CEST (2:00)")
}

func TestTZCompile(t *testing.T) {
	in := writeZoneFile(t)
	out := filepath.Join(t.TempDir(), "compact")
	require.NoError(t, tzCompile(in, out, 2026, 2027, false))
	table, err := tzrules.Load(out)
	require.NoError(t, err)
	require.Len(t, table.Transitions, 2)
	require.Equal(t, cet, table.Before)

	// only winter time is left
	require.NoError(t, tzCompile(in, out, 2027, 0, false))
	table, err = tzrules.Load(out)
	require.NoError(t, err)
	require.Empty(t, table.Transitions)
	require.Equal(t, cet, table.Before)

	require.Error(t, tzCompile(in, out, 2027, 2026, false))
}

func TestConvert(t *testing.T) {
	path := writeZoneFile(t)
	var out bytes.Buffer
	require.NoError(t, convert(&out, path, 60, "1791985530", ""))
	require.Equal(t, "14-Oct-2026  3:45:30.00 pm CEST (2:00)\nwall 56,287,495,30,60 date 56287\n", out.String())

	out.Reset()
	require.NoError(t, convert(&out, path, 60, "", "56,287,495,30,30"))
	require.Equal(t, "14-Oct-2026  3:45:30.50 pm CEST (2:00)\nunix 1791985530.500000000\n", out.String())

	require.Error(t, convert(&out, path, 60, "", "56,0,495,30,30"))
}
