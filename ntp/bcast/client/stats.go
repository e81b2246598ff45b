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

package client

import (
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// counter names
const (
	counterCycles           = "ntpbcast.cycles"
	counterPackets          = "ntpbcast.packets"
	counterPacketsDiscarded = "ntpbcast.packets.discarded"
	counterFramesDiscarded  = "ntpbcast.frames.discarded"
	counterFramesTransient  = "ntpbcast.frames.transient"
	counterAnnounces        = "ntpbcast.announces"
	counterZoneChanges      = "ntpbcast.zone.changes"
	counterZoneOffset       = "ntpbcast.zone.offset"
	counterCorrectionLast   = "ntpbcast.correction.last_ns"
	counterCorrectionMean   = "ntpbcast.correction.mean_ns"
	counterCorrectionStddev = "ntpbcast.correction.stddev_ns"
	counterCorrectionSteps  = "ntpbcast.correction.steps"
)

// StatsServer is a stats server interface
type StatsServer interface {
	// Reset atomically sets all the counters to 0
	Reset()
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
	// AddCorrection accounts applied clock correction
	AddCorrection(d time.Duration)
	IncFramesDiscarded()
	IncFramesTransient()
}

// Stats is an implementation of StatsServer
type Stats struct {
	mux         sync.Mutex
	counters    map[string]int64
	corrections *welford.Stats
}

// NewStats created new instance of Stats
func NewStats() *Stats {
	return &Stats{
		counters:    map[string]int64{},
		corrections: welford.New(),
	}
}

// UpdateCounterBy will increment counter
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// AddCorrection updates last, mean and stddev of corrections
func (s *Stats) AddCorrection(d time.Duration) {
	s.mux.Lock()
	s.corrections.Add(float64(d.Nanoseconds()))
	s.counters[counterCorrectionSteps]++
	s.counters[counterCorrectionLast] = d.Nanoseconds()
	s.counters[counterCorrectionMean] = int64(s.corrections.Mean())
	s.counters[counterCorrectionStddev] = int64(s.corrections.Stddev())
	s.mux.Unlock()
}

// IncFramesDiscarded implements frame.Stats
func (s *Stats) IncFramesDiscarded() {
	s.UpdateCounterBy(counterFramesDiscarded, 1)
}

// IncFramesTransient implements frame.Stats
func (s *Stats) IncFramesTransient() {
	s.UpdateCounterBy(counterFramesTransient, 1)
}

// GetCounters returns an map of counters
func (s *Stats) GetCounters() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// Reset all the values of counters
func (s *Stats) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.corrections = welford.New()
	s.mux.Unlock()
}
