// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"sync"

	"github.com/aleutian-labs/libid/detect"
)

// JobEvent is one progress update for an in-flight detect job, streamed to
// GET /v1/detect/:id/events subscribers.
type JobEvent struct {
	Stage   string         `json:"stage"`
	Message string         `json:"message,omitempty"`
	Done    bool           `json:"done"`
	Error   string         `json:"error,omitempty"`
	Result  *detect.Result `json:"result,omitempty"`
}

// job tracks one asynchronous detect run: a broadcast point for progress
// events plus the terminal event once the run finishes, so a subscriber
// that connects after completion still gets the final result immediately.
type job struct {
	mu       sync.Mutex
	subs     map[chan JobEvent]struct{}
	finished bool
	final    JobEvent
}

func newJob() *job {
	return &job{subs: make(map[chan JobEvent]struct{})}
}

func (j *job) publish(evt JobEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	if evt.Done {
		j.finished = true
		j.final = evt
	}
	for ch := range j.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (j *job) subscribe() (chan JobEvent, func()) {
	ch := make(chan JobEvent, 16)
	j.mu.Lock()
	if j.finished {
		ch <- j.final
	} else {
		j.subs[ch] = struct{}{}
	}
	j.mu.Unlock()

	unsubscribe := func() {
		j.mu.Lock()
		delete(j.subs, ch)
		j.mu.Unlock()
	}
	return ch, unsubscribe
}

// jobRegistry is the process-wide table of in-flight and recently
// completed detect jobs, keyed by job ID.
//
// Thread Safety: Safe for concurrent use.
type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*job)}
}

func (r *jobRegistry) create(id string) *job {
	j := newJob()
	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()
	return j
}

func (r *jobRegistry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}
