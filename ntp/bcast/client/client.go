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
Package client implements NTP broadcast client.

It listens for NTP packets broadcast on the local network and sets the host
wall clock from their transmit timestamp, applying UTC offset from the
time zone rules. Every noticeable change (clock moved by more than announce
threshold, or time zone offset changed) is announced to the notifier.
*/
package client

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/ntpbcast/hostclock"
	"github.com/facebook/ntpbcast/notify"
	"github.com/facebook/ntpbcast/ntp/protocol"
	"github.com/facebook/ntpbcast/tzrules"
	"github.com/facebook/ntpbcast/wallclock"
)

// Receiver is a source of validated NTP packets
type Receiver interface {
	// Receive returns next packet, or nil if there is nothing pending
	Receive() (*protocol.Packet, error)
	// Wait sleeps at most timeout, waking early when a frame arrives
	Wait(ctx context.Context, timeout time.Duration) error
}

// Client is NTP broadcast client
type Client struct {
	cfg      *Config
	conv     wallclock.Converter
	clock    hostclock.Accessor
	frames   Receiver
	resolver *tzrules.Resolver
	notifier notify.Notifier
	stats    StatsServer

	watchdog time.Duration
	ping     func() error
}

// New creates Client. The clock is expected to use resolver for its UTC offset
func New(cfg *Config, clock hostclock.Accessor, frames Receiver, resolver *tzrules.Resolver, notifier notify.Notifier, stats StatsServer) *Client {
	if cfg.FreeRunning {
		log.Warning("operating in FreeRunning mode, will NOT adjust clock")
	}
	return &Client{
		cfg:      cfg,
		conv:     wallclock.NewConverter(cfg.Hertz),
		clock:    clock,
		frames:   frames,
		resolver: resolver,
		notifier: notifier,
		stats:    stats,
	}
}

// SetWatchdog makes client call ping at least every interval/2
func (c *Client) SetWatchdog(interval time.Duration, ping func() error) {
	c.watchdog = interval
	c.ping = ping
}

// Init picks time zone for current clock reading
func (c *Client) Init() error {
	now, err := c.clock.Read()
	if err != nil {
		return fmt.Errorf("reading clock: %w", err)
	}
	local, err := c.conv.LocalSeconds(now)
	if err != nil {
		return fmt.Errorf("converting clock reading %s: %w", now, err)
	}
	z, _ := c.resolver.ResolveLocal(local)
	c.stats.SetCounter(counterZoneOffset, int64(z.Offset))
	log.Infof("ntpbcast started %s", c.conv.Format(now, z.Abbrev, z.Offset))
	return nil
}

// now returns current UTC seconds and the clock reading
func (c *Client) now() (int64, wallclock.WallClock, error) {
	w, err := c.clock.Read()
	if err != nil {
		return 0, w, fmt.Errorf("reading clock: %w", err)
	}
	sec, err := c.conv.ToUnix(w, c.resolver.Offset())
	if err != nil {
		return 0, w, fmt.Errorf("converting clock reading %s: %w", w, err)
	}
	return sec, w, nil
}

// sleepBudget returns how long we can wait for the next packet
func (c *Client) sleepBudget(now int64, w tzrules.Window) time.Duration {
	d := c.cfg.MaxSleep
	if w.HasNext {
		left := w.Until - now
		if left < int64(d/time.Second) {
			d = time.Duration(left) * time.Second
		}
	}
	if c.watchdog > 0 && c.watchdog/2 < d {
		d = c.watchdog / 2
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (c *Client) heartbeat() {
	if c.ping == nil {
		return
	}
	if err := c.ping(); err != nil {
		log.Warningf("failed to ping watchdog: %v", err)
	}
}

func (c *Client) announce(text string) {
	c.notifier.WakeAllWaiters()
	if err := c.notifier.SendStatus(text); err != nil {
		log.Errorf("failed to send status: %v", err)
	}
	c.stats.UpdateCounterBy(counterAnnounces, 1)
}

// RunOnce waits for one packet and applies it
func (c *Client) RunOnce(ctx context.Context) error {
	c.stats.UpdateCounterBy(counterCycles, 1)
	cur, _, err := c.now()
	if err != nil {
		return err
	}
	window := c.resolver.Window()
	sleep := c.sleepBudget(cur, window)
	log.Debugf("waiting up to %v for packets", sleep)
	if err := c.frames.Wait(ctx, sleep); err != nil {
		return err
	}
	c.heartbeat()

	p, err := c.frames.Receive()
	if err != nil {
		return fmt.Errorf("receiving packet: %w", err)
	}
	if p == nil {
		return c.checkZone(window)
	}
	return c.apply(p)
}

// checkZone re-resolves time zone once current window expires
func (c *Client) checkZone(window tzrules.Window) error {
	if !window.HasNext {
		return nil
	}
	cur, w, err := c.now()
	if err != nil {
		return err
	}
	if cur < window.Until {
		return nil
	}
	z, changed := c.resolver.Resolve(cur)
	if !changed {
		return nil
	}
	c.stats.SetCounter(counterZoneOffset, int64(z.Offset))
	if z == window.Current {
		return nil
	}
	c.stats.UpdateCounterBy(counterZoneChanges, 1)
	// the clock reading was converted with the old offset
	w, err = c.conv.FromUnix(cur, z.Offset)
	if err != nil {
		return fmt.Errorf("converting %d: %w", cur, err)
	}
	log.Infof("time zone changed from %s to %s", window.Current.Abbrev, z.Abbrev)
	c.announce(fmt.Sprintf("Time zone changed, time is %s", c.conv.Format(w, z.Abbrev, z.Offset)))
	return nil
}

// discard drops packet with transmit time outside of supported range
func (c *Client) discard(p *protocol.Packet, err error) {
	c.stats.UpdateCounterBy(counterPacketsDiscarded, 1)
	log.Warningf("discarding packet %s from %s: %v", p.Transmit(), p.RefID(), err)
}

// apply sets the clock from packet transmit timestamp
func (c *Client) apply(p *protocol.Packet) error {
	c.stats.UpdateCounterBy(counterPackets, 1)
	sec, ticks := p.Transmit().Ticks(c.conv.Hertz)
	// the window cache must not move to an instant we can't represent
	if _, err := c.conv.FromUnix(sec, 0); err != nil {
		c.discard(p, err)
		return nil
	}
	z, changed := c.resolver.Resolve(sec)
	w, err := c.conv.FromUnix(sec, z.Offset)
	if err != nil {
		c.discard(p, err)
		return nil
	}
	w.Ticks = ticks
	newSec, newNsec, err := c.conv.ToUnixNano(w, z.Offset)
	if err != nil {
		return fmt.Errorf("converting packet time %s: %w", p.Transmit(), err)
	}

	old, err := c.clock.Read()
	if err != nil {
		return fmt.Errorf("reading clock: %w", err)
	}
	oldSec, oldNsec, err := c.conv.ToUnixNano(old, z.Offset)
	if err != nil {
		return fmt.Errorf("converting clock reading %s: %w", old, err)
	}
	if err := c.clock.Write(w); err != nil {
		return fmt.Errorf("setting clock: %w", err)
	}

	correction := time.Duration(newSec-oldSec)*time.Second + time.Duration(newNsec-oldNsec)
	c.stats.AddCorrection(correction)
	log.Debugf("packet %s from %s, correction %v", p.Transmit(), p.RefID(), correction)

	delta := oldSec - sec
	if delta < 0 {
		delta = -delta
	}
	if changed {
		c.stats.SetCounter(counterZoneOffset, int64(z.Offset))
		c.stats.UpdateCounterBy(counterZoneChanges, 1)
		log.Infof("time zone is %s", wallclock.FormatZone(z.Abbrev, z.Offset))
	}
	if changed || delta > int64(c.cfg.AnnounceThreshold/time.Second) {
		c.announce(fmt.Sprintf("Time updated to %s, stratum %d, source %s",
			c.conv.Format(w, z.Abbrev, z.Offset), p.Stratum, p.RefID()))
	}
	return nil
}

// Run makes things run, continuously
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			log.Debug("cancelled main loop")
			return ctx.Err()
		default:
		}
		if err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				log.Debug("cancelled main loop")
				return ctx.Err()
			}
			return err
		}
	}
}
