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
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/facebook/ntpbcast/hostclock"
	"github.com/facebook/ntpbcast/notify"
	"github.com/facebook/ntpbcast/ntp/bcast/client"
	"github.com/facebook/ntpbcast/ntp/bcast/frame"
	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

var (
	runConfig string
	runFlags  = client.DefaultConfig()
)

func init() {
	RootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVarP(&runConfig, "config", "c", "", "path to the config (yaml, toml or ini)")
	f.StringVarP(&runFlags.Iface, "iface", "i", runFlags.Iface, "network interface to listen on")
	f.StringVarP(&runFlags.ZoneFile, "zonefile", "z", runFlags.ZoneFile, "TZif time zone file, empty for UTC")
	f.IntVar(&runFlags.Hertz, "hertz", runFlags.Hertz, "clock tick resolution")
	f.IntVarP(&runFlags.Port, "port", "p", runFlags.Port, "UDP port of NTP broadcasts")
	f.BoolVar(&runFlags.FreeRunning, "freerunning", runFlags.FreeRunning, "never set the clock, only log")
	f.BoolVar(&runFlags.Step, "step", runFlags.Step, "step the clock by the difference instead of setting it")
	f.IntVar(&runFlags.MonitoringPort, "monitoringport", runFlags.MonitoringPort, "port to start monitoring http server on, 0 to disable")
	f.StringVar(&runFlags.LogFile, "logfile", runFlags.LogFile, "also log into this file, rotated")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run NTP broadcast client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ConfigureVerbosity()
		setFlags := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			setFlags[f.Name] = true
		})
		cfg, err := client.PrepareConfig(runConfig, runFlags, setFlags)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return runDaemon(cfg)
	},
}

func setupLogFile(path string) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func newAccessor(cfg *client.Config, conv wallclock.Converter, resolver *tzrules.Resolver) hostclock.Accessor {
	if cfg.FreeRunning {
		return hostclock.NewFreeRunningClock(conv, resolver)
	}
	var opts []hostclock.Option
	if cfg.Step {
		opts = append(opts, hostclock.WithStep())
	}
	return hostclock.NewSystemClock(conv, resolver, opts...)
}

func runDaemon(cfg *client.Config) error {
	if cfg.LogFile != "" {
		setupLogFile(cfg.LogFile)
	}
	table, err := loadTable(cfg.ZoneFile)
	if err != nil {
		return err
	}
	resolver := tzrules.NewResolver(table)
	// system clock keeps UTC, so the zone can be picked before the first reading
	resolver.Resolve(time.Now().Unix())
	conv := wallclock.NewConverter(cfg.Hertz)

	sock, err := frame.Open(cfg.Iface, cfg.BufferCount)
	if err != nil {
		return err
	}
	defer sock.Close()
	if err := sock.EnableBroadcast(); err != nil {
		return err
	}
	if cfg.AttachFilter {
		if err := sock.AttachFilter(uint16(cfg.Port)); err != nil {
			log.Warningf("failed to attach socket filter, filtering in userspace only: %v", err)
		}
	}

	waiters := notify.NewWaiters()
	stats := client.NewJSONStats(waiters)
	filter := frame.NewFilter(sock, cfg.Port, stats)
	notifier := notify.Multi{waiters, notify.Log{}, notify.Systemd{}}
	c := client.New(cfg, newAccessor(cfg, conv, resolver), filter, resolver, notifier, stats)

	watchdog, err := notify.WatchdogInterval()
	if err != nil {
		log.Warningf("failed to get systemd watchdog interval: %v", err)
	} else if watchdog > 0 {
		log.Infof("systemd watchdog is enabled, interval %v", watchdog)
		c.SetWatchdog(watchdog, notify.Watchdog)
	}
	if err := c.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)
	if cfg.MonitoringPort > 0 {
		eg.Go(func() error {
			return stats.Start(ctx, cfg.MonitoringPort, cfg.MetricsAggregationWindow)
		})
	}
	eg.Go(func() error {
		return c.Run(ctx)
	})
	if err := notify.Ready(); err != nil {
		log.Warningf("failed to notify systemd: %v", err)
	}

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("exiting")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ntpbcast failed: %w", err)
	}
	return nil
}
