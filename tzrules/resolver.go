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

package tzrules

import (
	"math"
	"sort"
	"sync"
)

// Instant bounds of a window which has no previous or no next transition
const (
	MinInstant int64 = math.MinInt64
	MaxInstant int64 = math.MaxInt64
)

// Window is the interval [From, Until) during which Current is in force
type Window struct {
	From    int64
	Until   int64
	Current Zone
	// Next is only meaningful if HasNext is set
	Next    Zone
	HasNext bool
}

// Contains checks if utc instant belongs to the window
func (w Window) Contains(utc int64) bool {
	return utc >= w.From && utc < w.Until
}

// Lookup returns the window for utc instant
func (t *Table) Lookup(utc int64) Window {
	return t.lookup(utc, t.Before)
}

func (t *Table) lookup(utc int64, before Zone) Window {
	tr := t.Transitions
	// first transition after utc
	i := sort.Search(len(tr), func(i int) bool { return tr[i].At > utc })
	w := Window{From: MinInstant, Until: MaxInstant, Current: before}
	if i > 0 {
		w.From = tr[i-1].At
		w.Current = tr[i-1].Zone
	}
	if i < len(tr) {
		w.Until = tr[i].At
		w.Next = tr[i].Zone
		w.HasNext = true
	}
	return w
}

// Option configures Resolver
type Option func(*Resolver)

// WithDefault sets the zone in force before the first transition.
// Without it the table's own Before zone is used.
func WithDefault(z Zone) Option {
	return func(r *Resolver) {
		r.before = z
	}
}

// Resolver caches the window of the last resolved instant
type Resolver struct {
	table  *Table
	before Zone

	mu     sync.Mutex
	window Window
	valid  bool
}

// NewResolver returns Resolver over the table
func NewResolver(t *Table, opts ...Option) *Resolver {
	r := &Resolver{table: t, before: t.Before}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the zone in force at utc instant.
// changed is true if the cached window had to be reloaded.
func (r *Resolver) Resolve(utc int64) (z Zone, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(utc)
}

func (r *Resolver) resolve(utc int64) (Zone, bool) {
	if r.valid && r.window.Contains(utc) {
		return r.window.Current, false
	}
	r.window = r.table.lookup(utc, r.before)
	r.valid = true
	return r.window.Current, true
}

// ResolveLocal returns the zone in force at local instant.
// The instant is first converted to UTC with the cached offset, and
// resolved once more if the resulting offset moves it out of the window.
func (r *Resolver) ResolveLocal(local int64) (z Zone, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, changed = r.resolve(local - int64(r.window.Current.Offset))
	utc := local - int64(z.Offset)
	if !r.window.Contains(utc) {
		var again bool
		z, again = r.resolve(utc)
		changed = changed || again
	}
	return z, changed
}

// Window returns copy of the cached window
func (r *Resolver) Window() Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}

// Offset returns cached UTC offset in seconds
func (r *Resolver) Offset() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window.Current.Offset
}

// Table returns the underlying rule table
func (r *Resolver) Table() *Table {
	return r.table
}
