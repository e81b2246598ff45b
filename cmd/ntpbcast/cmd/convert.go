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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

var (
	convertZoneFile string
	convertHertz    int
	convertWall     string
)

func init() {
	RootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertZoneFile, "zonefile", "z", "/etc/localtime", "TZif time zone file, empty for UTC")
	convertCmd.Flags().IntVar(&convertHertz, "hertz", wallclock.DefaultHertz, "clock tick resolution")
	convertCmd.Flags().StringVarP(&convertWall, "wall", "w", "", "convert countdown value year,day,minutes,seconds,ticks to unix time")
}

var convertCmd = &cobra.Command{
	Use:   "convert [unix seconds or RFC3339]",
	Short: "Convert between unix time and countdown wall clock",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		at := ""
		if len(args) > 0 {
			at = args[0]
		}
		if err := convert(os.Stdout, convertZoneFile, convertHertz, at, convertWall); err != nil {
			log.Fatal(err)
		}
	},
}

func convert(w io.Writer, path string, hertz int, at, wall string) error {
	table, err := loadTable(path)
	if err != nil {
		return err
	}
	resolver := tzrules.NewResolver(table)
	conv := wallclock.NewConverter(hertz)

	if wall != "" {
		v, err := parseWall(wall)
		if err != nil {
			return err
		}
		if err := v.Validate(conv.Hertz); err != nil {
			return err
		}
		local, err := conv.LocalSeconds(v)
		if err != nil {
			return err
		}
		z, _ := resolver.ResolveLocal(local)
		t, err := conv.ToTime(v, z.Offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", conv.Format(v, z.Abbrev, z.Offset))
		fmt.Fprintf(w, "unix %d.%09d\n", t.Unix(), t.Nanosecond())
		return nil
	}

	sec, err := parseInstant(at)
	if err != nil {
		return err
	}
	z, _ := resolver.Resolve(sec)
	v, err := conv.FromUnix(sec, z.Offset)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", conv.Format(v, z.Abbrev, z.Offset))
	fmt.Fprintf(w, "wall %d,%d,%d,%d,%d date %d\n", v.Year, v.Day, v.Minutes, v.Seconds, v.Ticks, v.Date())
	return nil
}
