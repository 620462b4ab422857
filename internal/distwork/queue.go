// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package distwork offers a NATS-backed work queue so profiling tasks can
// be distributed across many libid worker processes, a scale-out
// replacement for a single-process worker pool when binaries live on
// several machines.
package distwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aleutian-labs/libid/detect"
	"github.com/nats-io/nats.go"
)

// ErrQueueClosed is returned by PublishTask, PublishResult and Consume once
// the queue has been closed.
var ErrQueueClosed = errors.New("distwork: queue closed")

const (
	subjectTasks   = "libid.profile.tasks"
	subjectResults = "libid.profile.results"
	queueGroup     = "libid-profilers"
)

// ProfileTask is one unit of distributed work: profile the binary at Path
// and publish the resulting profile metadata back on subjectResults.
type ProfileTask struct {
	Path  string             `json:"path"`
	Meta  detect.LibraryMeta `json:"meta,omitempty"`
	IsApp bool               `json:"is_app"`
}

// ProfileResult reports the outcome of one ProfileTask.
type ProfileResult struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// Queue wraps a NATS connection with the publish/subscribe subjects libid
// uses to hand profiling tasks to remote workers and collect their results.
//
// Thread Safety: Queue's methods are safe for concurrent use; they defer
// to the underlying *nats.Conn, which is itself concurrency-safe.
type Queue struct {
	conn   *nats.Conn
	logger *slog.Logger
	closed atomic.Bool
}

// Connect dials url (e.g. "nats://localhost:4222") with a bounded number
// of reconnect attempts, matching how short-lived CLI processes should
// fail fast rather than hang indefinitely on a dead broker.
func Connect(url string, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("distwork: disconnected from NATS", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("distwork: reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("distwork: connecting to %s: %w", url, err)
	}
	return &Queue{conn: conn, logger: logger}, nil
}

// Close drains and closes the underlying NATS connection.
func (q *Queue) Close() {
	if q.conn == nil {
		return
	}
	q.closed.Store(true)
	if err := q.conn.Drain(); err != nil {
		q.logger.Warn("distwork: drain failed", slog.String("error", err.Error()))
	}
}

// PublishTask enqueues a single profiling task for any available worker
// in queueGroup to pick up.
func (q *Queue) PublishTask(task ProfileTask) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("distwork: marshaling task: %w", err)
	}
	if err := q.conn.Publish(subjectTasks, data); err != nil {
		return fmt.Errorf("distwork: publishing task: %w", err)
	}
	return nil
}

// PublishResult reports the outcome of a task this worker completed.
func (q *Queue) PublishResult(result ProfileResult) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("distwork: marshaling result: %w", err)
	}
	if err := q.conn.Publish(subjectResults, data); err != nil {
		return fmt.Errorf("distwork: publishing result: %w", err)
	}
	return nil
}

// Consume runs handler for every task delivered to this process's queue
// subscription until ctx is canceled. Multiple processes subscribing with
// the same queueGroup share the task stream, each task goes to exactly
// one of them.
func (q *Queue) Consume(ctx context.Context, handler func(context.Context, ProfileTask) error) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	tasks := make(chan *nats.Msg, 64)
	sub, err := q.conn.ChanQueueSubscribe(subjectTasks, queueGroup, tasks)
	if err != nil {
		return fmt.Errorf("distwork: subscribing: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-tasks:
			var task ProfileTask
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				q.logger.Warn("distwork: dropping malformed task", slog.String("error", err.Error()))
				continue
			}
			if err := handler(ctx, task); err != nil {
				q.logger.Warn("distwork: task failed", slog.String("path", task.Path), slog.String("error", err.Error()))
				_ = q.PublishResult(ProfileResult{Path: task.Path, Error: err.Error()})
				continue
			}
			_ = q.PublishResult(ProfileResult{Path: task.Path})
		}
	}
}

// CollectResults subscribes to the results subject and forwards every
// ProfileResult to out until ctx is canceled or want results have arrived,
// whichever comes first. Useful for a dispatcher waiting on a known batch.
func (q *Queue) CollectResults(ctx context.Context, want int, out chan<- ProfileResult) error {
	results := make(chan *nats.Msg, 64)
	sub, err := q.conn.ChanSubscribe(subjectResults, results)
	if err != nil {
		return fmt.Errorf("distwork: subscribing to results: %w", err)
	}
	defer sub.Unsubscribe()

	seen := 0
	for seen < want {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-results:
			var result ProfileResult
			if err := json.Unmarshal(msg.Data, &result); err != nil {
				q.logger.Warn("distwork: dropping malformed result", slog.String("error", err.Error()))
				continue
			}
			out <- result
			seen++
		}
	}
	return nil
}
