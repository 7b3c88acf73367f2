/*
 * Copyright 2024 Nexus Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memtrack implements the process-wide buffer memory budget:
// a single counter that hands out tokens sized between a caller's
// minimum and maximum request, and that blocks a caller whose minimum
// cannot currently be satisfied until another token is released.
//
// The underlying primitive is golang.org/x/sync/semaphore.Weighted. Its
// built-in waiter queue already grants in FIFO order to the oldest
// pending waiter whose request fits the freed capacity, so the tracker
// itself only needs to own the min/max-to-actual quantization and
// free-byte bookkeeping.
package memtrack

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
)

// DefaultFactor is the production default growth factor between
// quantized allocation sizes.
const DefaultFactor = 8

// State is a Token's position in its Pending -> Granted -> Released state
// machine. Cancellation while Pending moves directly to
// Cancelled.
type State int

const (
	Pending State = iota
	Granted
	Released
	Cancelled
)

// Token represents one in-flight memory allocation.
type Token struct {
	tracker *Tracker
	bytes   int64

	mu    sync.Mutex
	state State
}

// Bytes returns the granted byte count. Valid once the token is Granted.
func (t *Token) Bytes() int64 { return t.bytes }

// State returns the token's current lifecycle state.
func (t *Token) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Release returns the token's bytes to the tracker's pool and wakes the
// oldest waiter that now fits. Release is idempotent; calling it more
// than once is a no-op after the first call.
func (t *Token) Release() {
	t.mu.Lock()
	if t.state != Granted {
		t.mu.Unlock()
		return
	}
	t.state = Released
	t.mu.Unlock()

	t.tracker.release(t.bytes)
}

func (t *Token) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Tracker is a process-wide byte budget.
type Tracker struct {
	sem    *semaphore.Weighted
	factor int64
	total  int64

	mu   sync.Mutex
	free int64
}

// New creates a Tracker with the given total budget in bytes. factor is
// the growth factor between quantized allocation sizes; pass
// DefaultFactor for the production default.
func New(totalBufferMemoryConsumption int64, factor int64) *Tracker {
	if factor < 2 {
		factor = DefaultFactor
	}
	return &Tracker{
		sem:    semaphore.NewWeighted(totalBufferMemoryConsumption),
		factor: factor,
		total:  totalBufferMemoryConsumption,
		free:   totalBufferMemoryConsumption,
	}
}

// quantize returns the largest value of the form min*factor^k (k >= 0)
// that is <= max, or min itself if min*factor already exceeds max.
func (tr *Tracker) quantize(min, max int64) int64 {
	v := min
	for v*tr.factor <= max {
		v *= tr.factor
	}
	if v > max {
		v = min
	}
	return v
}

// RegisterAllocation grants a token sized to the largest quantized value
// fitting the currently free budget, capped at max and no smaller than
// min. If even min does not currently fit, RegisterAllocation blocks
// until another token's Release frees enough capacity, or until ctx is
// canceled.
//
// A min that can never fit the budget fails with out-of-memory; a ctx
// canceled while waiting is an ordinary cancellation, not an
// out-of-memory condition, and moves the pending token to Cancelled.
func (tr *Tracker) RegisterAllocation(ctx context.Context, min, max int64) (*Token, error) {
	if min <= 0 || max < min {
		return nil, nexuserr.Validation("memtrack: invalid request min=%d max=%d", min, max)
	}
	if min > tr.total {
		return nil, nexuserr.OutOfMemory("memtrack: minimum allocation of %d bytes exceeds the %d-byte budget", min, tr.total)
	}

	tr.mu.Lock()
	free := tr.free
	tr.mu.Unlock()

	want := tr.quantize(min, max)
	for want > free && want > min {
		want /= tr.factor
	}

	if tr.sem.TryAcquire(want) {
		tr.mu.Lock()
		tr.free -= want
		tr.mu.Unlock()
		return &Token{tracker: tr, bytes: want, state: Granted}, nil
	}

	// Even the quantized-down amount isn't free right now: fall back to
	// the documented minimum grant and join the FIFO wait queue.
	t := &Token{tracker: tr, state: Pending}
	if err := tr.sem.Acquire(ctx, min); err != nil {
		t.setState(Cancelled)
		return t, fmt.Errorf("memtrack: allocation of %d bytes canceled while waiting: %w", min, err)
	}
	tr.mu.Lock()
	tr.free -= min
	tr.mu.Unlock()
	t.bytes = min
	t.setState(Granted)
	return t, nil
}

func (tr *Tracker) release(n int64) {
	tr.mu.Lock()
	tr.free += n
	tr.mu.Unlock()
	tr.sem.Release(n)
}

// Free returns the tracker's current estimate of free bytes. Intended
// for diagnostics/logging, not for scheduling decisions (callers should
// always go through RegisterAllocation).
func (tr *Tracker) Free() int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.free
}
