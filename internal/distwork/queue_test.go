// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package distwork

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
)

func startEmbeddedNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestQueue_PublishAndConsumeTask(t *testing.T) {
	srv := startEmbeddedNATS(t)

	q, err := Connect(srv.ClientURL(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan ProfileTask, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, task ProfileTask) error {
			received <- task
			cancel()
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond) // let the subscription establish
	if err := q.PublishTask(ProfileTask{Path: "lib.apk"}); err != nil {
		t.Fatalf("PublishTask: %v", err)
	}

	select {
	case task := <-received:
		if task.Path != "lib.apk" {
			t.Fatalf("expected task path lib.apk, got %q", task.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task delivery")
	}
}

func TestQueue_CollectResults(t *testing.T) {
	srv := startEmbeddedNATS(t)

	q, err := Connect(srv.ClientURL(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan ProfileResult, 1)
	done := make(chan error, 1)
	go func() { done <- q.CollectResults(ctx, 1, out) }()

	time.Sleep(100 * time.Millisecond)
	if err := q.PublishResult(ProfileResult{Path: "app.apk"}); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	select {
	case result := <-out:
		if result.Path != "app.apk" {
			t.Fatalf("expected result path app.apk, got %q", result.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	if err := <-done; err != nil {
		t.Fatalf("CollectResults: %v", err)
	}
}
