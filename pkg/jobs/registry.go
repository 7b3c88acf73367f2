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

// Package jobs tracks long-running, asynchronous units of work started
// by the data plane core. Operations like a wide-date-range cache Clear
// sweep one day at a time, and a caller should be able to poll progress
// instead of blocking on the whole sweep.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a Job's lifecycle state.
type State int

const (
	Running State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one tracked asynchronous unit of work.
type Job struct {
	ID          uuid.UUID
	Kind        string
	CatalogID   string
	State       State
	Progress    float64
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error
}

// Registry is a process-wide, concurrency-safe job table.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*Job)}
}

// Start registers a new Running job and returns its record. The caller
// owns reporting progress (SetProgress) and terminal state (Complete).
func (r *Registry) Start(kind, catalogID string) *Job {
	j := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		CatalogID: catalogID,
		State:     Running,
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
	return j
}

// SetProgress updates a running job's fractional progress in [0,1].
func (r *Registry) SetProgress(id uuid.UUID, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Progress = fraction
	}
}

// Complete transitions a job to its terminal state. err == nil means
// Succeeded.
func (r *Registry) Complete(id uuid.UUID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.CompletedAt = time.Now()
	if err != nil {
		j.State = Failed
		j.Err = err
		return
	}
	j.State = Succeeded
	j.Progress = 1
}

// Get returns a snapshot of the job with id, or false if unknown.
func (r *Registry) Get(id uuid.UUID) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns a snapshot of every tracked job.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}
