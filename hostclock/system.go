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

package hostclock

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/ntpbcast/wallclock"
)

// SystemClock is Accessor for system realtime clock
type SystemClock struct {
	conv wallclock.Converter
	zone OffsetSource
	step bool

	// platform primitives, replaced in tests
	now    func() (sec int64, nsec int64, err error)
	set    func(sec int64, nsec int64) error
	adjust func(step time.Duration) error
}

// Option configures SystemClock
type Option func(*SystemClock)

// WithStep makes Write step the clock by the difference instead of setting it
func WithStep() Option {
	return func(c *SystemClock) {
		c.step = true
	}
}

// NewSystemClock returns SystemClock converting with given converter and UTC offset source
func NewSystemClock(conv wallclock.Converter, zone OffsetSource, opts ...Option) *SystemClock {
	c := &SystemClock{
		conv:   conv,
		zone:   zone,
		now:    getTime,
		set:    setClock,
		adjust: Step,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SystemClock) readOnce() (wallclock.WallClock, error) {
	sec, nsec, err := c.now()
	if err != nil {
		return wallclock.WallClock{}, fmt.Errorf("reading clock: %w", err)
	}
	return c.conv.FromUnixNano(sec, nsec, c.zone.Offset())
}

// Read implements Accessor
func (c *SystemClock) Read() (wallclock.WallClock, error) {
	return ReadStable(c.readOnce)
}

// Write implements Accessor
func (c *SystemClock) Write(w wallclock.WallClock) error {
	sec, nsec, err := c.conv.ToUnixNano(w, c.zone.Offset())
	if err != nil {
		return err
	}
	if !c.step {
		if err := c.set(sec, nsec); err != nil {
			return fmt.Errorf("setting clock: %w", err)
		}
		return nil
	}
	nowSec, nowNsec, err := c.now()
	if err != nil {
		return fmt.Errorf("reading clock: %w", err)
	}
	step := time.Duration(sec-nowSec)*time.Second + time.Duration(nsec-nowNsec)
	log.Debugf("stepping clock by %v", step)
	if err := c.adjust(step); err != nil {
		return fmt.Errorf("stepping clock: %w", err)
	}
	return nil
}

// FreeRunningClock is the system clock which is never changed
type FreeRunningClock struct {
	*SystemClock
}

// NewFreeRunningClock returns FreeRunningClock
func NewFreeRunningClock(conv wallclock.Converter, zone OffsetSource) *FreeRunningClock {
	return &FreeRunningClock{SystemClock: NewSystemClock(conv, zone)}
}

// Write only logs the value
func (c *FreeRunningClock) Write(w wallclock.WallClock) error {
	log.Infof("free running, not setting clock to %s", c.conv.Format(w, "", c.zone.Offset()))
	return nil
}
