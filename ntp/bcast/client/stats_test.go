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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsReset(t *testing.T) {
	stats := NewStats()

	stats.SetCounter("some.counter", 123)
	got := stats.GetCounters()
	want := map[string]int64{
		"some.counter": 123,
	}
	require.Equal(t, want, got)
	stats.Reset()
	got = stats.GetCounters()
	want = map[string]int64{
		"some.counter": 0,
	}
	require.Equal(t, want, got)
}

func TestStatsCorrections(t *testing.T) {
	stats := NewStats()
	stats.AddCorrection(time.Second)
	stats.AddCorrection(3 * time.Second)
	stats.AddCorrection(-time.Second)
	got := stats.GetCounters()
	require.Equal(t, int64(3), got[counterCorrectionSteps])
	require.Equal(t, int64(-1000000000), got[counterCorrectionLast])
	require.Equal(t, int64(1000000000), got[counterCorrectionMean])
	require.Positive(t, got[counterCorrectionStddev])

	stats.Reset()
	stats.AddCorrection(time.Millisecond)
	stats.AddCorrection(time.Millisecond)
	got = stats.GetCounters()
	require.Equal(t, int64(1000000), got[counterCorrectionMean])
	require.Equal(t, int64(0), got[counterCorrectionStddev])
}

func TestStatsFrames(t *testing.T) {
	stats := NewStats()
	stats.IncFramesDiscarded()
	stats.IncFramesDiscarded()
	stats.IncFramesTransient()
	got := stats.GetCounters()
	require.Equal(t, int64(2), got[counterFramesDiscarded])
	require.Equal(t, int64(1), got[counterFramesTransient])
}
