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
	"sync/atomic"
	"testing"
)

func TestWorkerPool_RunsEveryTask(t *testing.T) {
	wp := NewWorkerPool(4)
	var count int64
	err := wp.Run(context.Background(), 100, func(_ context.Context, _ int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 100 {
		t.Fatalf("expected all 100 tasks to run, got %d", count)
	}
}

func TestWorkerPool_DefaultsConcurrencyWhenNonPositive(t *testing.T) {
	wp := NewWorkerPool(0)
	if wp.Concurrency <= 0 {
		t.Fatalf("expected a positive default concurrency, got %d", wp.Concurrency)
	}
}

func TestWorkerPool_PropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wp := NewWorkerPool(2)
	err := wp.Run(ctx, 10, func(ctx context.Context, _ int) error {
		return ctx.Err()
	})
	if err == nil {
		t.Fatalf("expected Run to surface the cancellation error")
	}
}
