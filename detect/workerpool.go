// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds fan-out across whole binaries (profiling) or whole
// candidate libraries (detection), the two embarrassingly-parallel units
// this orchestrator schedules. A task that returns a non-nil error cancels
// the context handed to every other task, and Run returns the first such
// error. Per-task errors are expected to be handled (logged, counted)
// inside task itself, which then returns nil so the others run undisturbed.
type WorkerPool struct {
	Concurrency int
}

// NewWorkerPool returns a WorkerPool with concurrency set to concurrency,
// or runtime.NumCPU() when concurrency <= 0.
func NewWorkerPool(concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &WorkerPool{Concurrency: concurrency}
}

// Run invokes task once for each i in [0, n), bounded to Concurrency
// concurrent goroutines, and waits for every invocation to return, even
// after ctx is canceled.
func (wp *WorkerPool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.Concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return task(gctx, i)
		})
	}
	return g.Wait()
}
