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
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

var (
	tzZoneFile string
	tzAt       string
	tzOut      string
	tzFrom     int
	tzTo       int
	tzVersion2 bool
)

func init() {
	RootCmd.AddCommand(tzCmd)
	tzCmd.PersistentFlags().StringVarP(&tzZoneFile, "zonefile", "z", "/etc/localtime", "TZif time zone file, empty for UTC")
	tzCmd.AddCommand(tzShowCmd)
	tzShowCmd.Flags().StringVarP(&tzAt, "at", "t", "", "instant as unix seconds or RFC3339, now by default")
	tzCmd.AddCommand(tzDumpCmd)
	tzCmd.AddCommand(tzCompileCmd)
	tzCompileCmd.Flags().StringVarP(&tzOut, "out", "o", "", "output file")
	tzCompileCmd.Flags().IntVar(&tzFrom, "from", 0, "keep transitions starting from this year")
	tzCompileCmd.Flags().IntVar(&tzTo, "to", 0, "keep transitions before this year")
	tzCompileCmd.Flags().BoolVar(&tzVersion2, "v2", false, "write version 2 file with 64-bit transitions")
	_ = tzCompileCmd.MarkFlagRequired("out")
}

var tzCmd = &cobra.Command{
	Use:   "tz",
	Short: "Inspect and compile time zone rule files",
}

var tzShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print time zone in force at the instant",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := tzShow(os.Stdout, tzZoneFile, tzAt); err != nil {
			log.Fatal(err)
		}
	},
}

var tzDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print all transitions of time zone file",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := tzDump(os.Stdout, tzZoneFile); err != nil {
			log.Fatal(err)
		}
	},
}

var tzCompileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Write compact time zone file with transitions of given years",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := tzCompile(tzZoneFile, tzOut, tzFrom, tzTo, tzVersion2); err != nil {
			log.Fatal(err)
		}
	},
}

func tzShow(w io.Writer, path, at string) error {
	table, err := loadTable(path)
	if err != nil {
		return err
	}
	sec, err := parseInstant(at)
	if err != nil {
		return err
	}
	window := table.Lookup(sec)
	z := window.Current
	conv := wallclock.NewConverter(wallclock.DefaultHertz)
	local, err := conv.FromUnix(sec, z.Offset)
	if err != nil {
		return err
	}
	dst := ""
	if z.IsDST {
		dst = color.YellowString(" DST")
	}
	fmt.Fprintf(w, "%s%s\n", conv.Format(local, z.Abbrev, z.Offset), dst)
	fmt.Fprintf(w, "in force from %s until %s\n", formatInstant(window.From), formatInstant(window.Until))
	if window.HasNext {
		fmt.Fprintf(w, "next: %s\n", color.GreenString(wallclock.FormatZone(window.Next.Abbrev, window.Next.Offset)))
	} else {
		fmt.Fprintln(w, "next: none")
	}
	return nil
}

// transitionRows returns table rows, the first one is the zone before all transitions
func transitionRows(table *tzrules.Table) [][]string {
	row := func(at string, z tzrules.Zone) []string {
		return []string{at, z.Abbrev, fmt.Sprintf("%d", z.Offset), wallclock.FormatZone(z.Abbrev, z.Offset), fmt.Sprintf("%v", z.IsDST)}
	}
	rows := [][]string{row(formatInstant(tzrules.MinInstant), table.Before)}
	for _, tr := range table.Transitions {
		rows = append(rows, row(formatInstant(tr.At), tr.Zone))
	}
	return rows
}

func tzDump(w io.Writer, path string) error {
	table, err := loadTable(path)
	if err != nil {
		return err
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"from", "abbrev", "offset", "zone", "dst"})
	for _, row := range transitionRows(table) {
		t.Append(row)
	}
	t.Render()
	return nil
}

func yearStart(year int) int64 {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
}

func tzCompile(in, out string, from, to int, v2 bool) error {
	table, err := loadTable(in)
	if err != nil {
		return err
	}
	start, end := tzrules.MinInstant, tzrules.MaxInstant
	if from != 0 {
		// Slice keeps transitions strictly after start
		start = yearStart(from) - 1
	}
	if to != 0 {
		end = yearStart(to)
	}
	if start >= end {
		return fmt.Errorf("nothing to keep between %d and %d", from, to)
	}
	table = table.Slice(start, end)

	var ver byte
	if v2 {
		ver = '2'
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := tzrules.Write(f, ver, table); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("wrote %d transitions to %s", len(table.Transitions), out)
	return nil
}
