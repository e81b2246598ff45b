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

// Package notify tells the rest of the host that time was updated
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
)

// Notifier is told about every announced time update
type Notifier interface {
	// WakeAllWaiters releases everyone blocked until the next update
	WakeAllWaiters()
	// SendStatus publishes human readable status line
	SendStatus(text string) error
}

// generation is one round of waiters released by a single WakeAllWaiters
type generation struct {
	woken  chan struct{}
	sent   chan struct{}
	status string
	wakes  int64
}

func newGeneration() *generation {
	return &generation{woken: make(chan struct{}), sent: make(chan struct{})}
}

// Waiters is a broadcast primitive: Wait blocks until the next WakeAllWaiters
// and returns the status line sent right after that wake up.
type Waiters struct {
	mu      sync.Mutex
	next    *generation
	pending *generation
	status  string
	wakes   int64
}

// NewWaiters returns Waiters
func NewWaiters() *Waiters {
	return &Waiters{next: newGeneration()}
}

// Wait blocks until waiters are woken up and the following status is sent, or ctx is done.
// It returns that status and the number of wake ups so far.
func (w *Waiters) Wait(ctx context.Context) (string, int64, error) {
	w.mu.Lock()
	g := w.next
	w.mu.Unlock()
	for _, ch := range []chan struct{}{g.woken, g.sent} {
		select {
		case <-ch:
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return g.status, g.wakes, nil
}

// deliver releases pending generation with given status, must be called with mu held
func (w *Waiters) deliver(status string) {
	if w.pending == nil {
		return
	}
	w.pending.status = status
	close(w.pending.sent)
	w.pending = nil
}

// WakeAllWaiters implements Notifier
func (w *Waiters) WakeAllWaiters() {
	w.mu.Lock()
	defer w.mu.Unlock()
	// previous wake up got no status of its own
	w.deliver(w.status)
	w.wakes++
	g := w.next
	g.wakes = w.wakes
	close(g.woken)
	w.pending = g
	w.next = newGeneration()
}

// SendStatus implements Notifier, it keeps the last status line
func (w *Waiters) SendStatus(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = text
	w.deliver(text)
	return nil
}

// Status returns last status line and number of wake ups so far
func (w *Waiters) Status() (string, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.wakes
}

// Systemd sends status to systemd over sd_notify protocol.
// Without NOTIFY_SOCKET there is nobody to notify, which is not an error.
type Systemd struct{}

// WakeAllWaiters implements Notifier
func (Systemd) WakeAllWaiters() {}

// SendStatus implements Notifier
func (Systemd) SendStatus(text string) error {
	return sdNotify("STATUS=" + text)
}

// Ready reports to systemd that startup is finished
func Ready() error {
	return sdNotify(daemon.SdNotifyReady)
}

// Watchdog pings systemd watchdog
func Watchdog() error {
	return sdNotify(daemon.SdNotifyWatchdog)
}

// WatchdogInterval returns systemd watchdog timeout, 0 if watchdog is disabled
func WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

func sdNotify(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return err
	}
	if !sent {
		log.Debugf("no systemd socket, %q not sent", state)
	}
	return nil
}

// Log writes status lines to the log
type Log struct{}

// WakeAllWaiters implements Notifier
func (Log) WakeAllWaiters() {}

// SendStatus implements Notifier
func (Log) SendStatus(text string) error {
	log.Info(text)
	return nil
}

// Multi fans out to all notifiers
type Multi []Notifier

// WakeAllWaiters implements Notifier
func (m Multi) WakeAllWaiters() {
	for _, n := range m {
		n.WakeAllWaiters()
	}
}

// SendStatus implements Notifier. All notifiers get the status, errors are joined
func (m Multi) SendStatus(text string) error {
	var errs []error
	for _, n := range m {
		if err := n.SendStatus(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
