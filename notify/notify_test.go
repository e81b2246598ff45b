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

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitersWake(t *testing.T) {
	w := NewWaiters()
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := w.Wait(context.Background())
			errs <- err
		}()
	}
	// wake until everybody is released, waiters may subscribe after the first wake
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		w.WakeAllWaiters()
		select {
		case <-done:
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWaitersCancel(t *testing.T) {
	w := NewWaiters()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := w.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitersNextGeneration(t *testing.T) {
	w := NewWaiters()
	w.WakeAllWaiters()
	// previous wake must not release new waiters
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := w.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitersStatus(t *testing.T) {
	w := NewWaiters()
	require.NoError(t, w.SendStatus("Time updated"))
	w.WakeAllWaiters()
	status, wakes := w.Status()
	require.Equal(t, "Time updated", status)
	require.Equal(t, int64(1), wakes)
}

func TestWaitersStatusOfOwnWake(t *testing.T) {
	w := NewWaiters()
	type result struct {
		status string
		wakes  int64
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, wakes, err := w.Wait(context.Background())
		done <- result{status, wakes, err}
	}()
	for i := 1; ; i++ {
		w.WakeAllWaiters()
		// the woken waiter must see this line, not the previous one
		require.NoError(t, w.SendStatus(fmt.Sprintf("update %d", i)))
		select {
		case r := <-done:
			require.NoError(t, r.err)
			require.Equal(t, fmt.Sprintf("update %d", r.wakes), r.status)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWaitersWokenWaitsForStatus(t *testing.T) {
	w := NewWaiters()
	w.mu.Lock()
	g := w.next
	w.mu.Unlock()
	w.WakeAllWaiters()
	select {
	case <-g.sent:
		t.Fatal("released before status was sent")
	default:
	}
	require.NoError(t, w.SendStatus("Time updated"))
	<-g.sent
	require.Equal(t, "Time updated", g.status)

	// a wake without status is released by the next one
	g = w.next
	w.WakeAllWaiters()
	w.WakeAllWaiters()
	<-g.sent
	require.Equal(t, "Time updated", g.status)
	require.Equal(t, int64(2), g.wakes)
}

func TestSystemdNoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	require.NoError(t, Systemd{}.SendStatus("hello"))
	require.NoError(t, Ready())
	require.NoError(t, Watchdog())
}

func TestWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	d, err := WatchdogInterval()
	require.NoError(t, err)
	require.Zero(t, d)
}

type failing struct {
	Log
	err error
}

func (f failing) SendStatus(string) error { return f.err }

func TestMulti(t *testing.T) {
	w1 := NewWaiters()
	w2 := NewWaiters()
	boom := errors.New("boom")
	m := Multi{w1, Log{}, failing{err: boom}, w2}

	m.WakeAllWaiters()
	err := m.SendStatus("status")
	require.ErrorIs(t, err, boom)

	for _, w := range []*Waiters{w1, w2} {
		status, wakes := w.Status()
		require.Equal(t, "status", status)
		require.Equal(t, int64(1), wakes)
	}
}
