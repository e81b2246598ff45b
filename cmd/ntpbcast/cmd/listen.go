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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/ntpbcast/ntp/bcast/frame"
)

var (
	listenIface string
	listenPcap  string
	listenPort  int
	listenCount int
	listenDump  bool
)

func init() {
	RootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVarP(&listenIface, "iface", "i", "eth0", "network interface to listen on")
	listenCmd.Flags().StringVarP(&listenPcap, "pcap", "f", "", "read frames from pcap or pcapng file instead")
	listenCmd.Flags().IntVarP(&listenPort, "port", "p", frame.DefaultPort, "UDP port of NTP broadcasts")
	listenCmd.Flags().IntVarP(&listenCount, "count", "n", 0, "stop after this many packets, 0 is unlimited")
	listenCmd.Flags().BoolVarP(&listenDump, "dump", "d", false, "dump whole packets")
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print NTP broadcast packets without touching the clock",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		var (
			src frame.Source
			err error
		)
		if listenPcap != "" {
			src, err = frame.OpenCapture(listenPcap)
		} else {
			src, err = openSocket(listenIface, listenPort)
		}
		if err != nil {
			log.Fatal(err)
		}
		defer src.Close()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := listen(ctx, os.Stdout, frame.NewFilter(src, listenPort, nil), listenCount, listenDump); err != nil {
			log.Error(err)
		}
	},
}

func openSocket(iface string, port int) (*frame.Socket, error) {
	sock, err := frame.Open(iface, frame.DefaultBufferCount)
	if err != nil {
		return nil, err
	}
	if err := sock.EnableBroadcast(); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.AttachFilter(uint16(port)); err != nil {
		log.Warningf("failed to attach socket filter: %v", err)
	}
	return sock, nil
}

func listen(ctx context.Context, w io.Writer, f *frame.Filter, count int, dump bool) error {
	for seen := 0; count == 0 || seen < count; {
		p, err := f.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if p == nil {
			if err := f.Wait(ctx, time.Second); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}
		seen++
		ts := p.Transmit()
		fmt.Fprintf(w, "%s transmit %s (%s)\n", p, ts, ts.Time().UTC().Format(time.RFC3339Nano))
		if dump {
			spew.Fdump(w, p)
		}
	}
	return nil
}
