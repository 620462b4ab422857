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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aleutian-labs/libid/profile"
)

// Watcher rebuilds a Detector's LSH index whenever the library-profile
// directory it watches changes, so a long-running detect process picks up
// newly added or updated library profiles without a restart.
type Watcher struct {
	Dir      string
	Store    profile.Store
	Opts     DetectorOptions
	Logger   *slog.Logger
	Debounce time.Duration

	// OnRebuild, if set, is called with the freshly built Detector after
	// every successful rebuild (including the initial one), so a caller
	// serving requests off a Watcher can hot-swap its reference.
	OnRebuild func(*Detector)

	current *Detector
}

// NewWatcher returns a Watcher rooted at dir with Debounce set to 500ms,
// coalescing bursts of filesystem events (e.g. a batch copy of many
// profile files) into a single index rebuild.
func NewWatcher(dir string, store profile.Store, opts DetectorOptions) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{Dir: dir, Store: store, Opts: opts, Logger: logger, Debounce: 500 * time.Millisecond}
}

// Current returns the most recently built Detector, or nil if Run has not
// completed an initial build yet.
func (w *Watcher) Current() *Detector {
	return w.current
}

// Run builds an initial index, then blocks watching Dir for filesystem
// events, rebuilding the index after each debounce window, until ctx is
// canceled or an unrecoverable watch-setup error occurs.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.rebuild(ctx); err != nil {
		return fmt.Errorf("detect: initial index build: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("detect: creating filesystem watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("detect: watching %s: %w", w.Dir, err)
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.Debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.Debounce)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", "dir", w.Dir, "error", watchErr)

		case <-pending:
			if err := w.rebuild(ctx); err != nil {
				w.Logger.Error("index rebuild failed, keeping previous index", "error", err)
			}
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(w.Dir, "*.json"))
	if err != nil {
		return err
	}
	libs := make([]*profile.LibraryProfile, 0, len(matches))
	for _, path := range matches {
		lp, err := w.Store.LoadLibrary(ctx, path)
		if err != nil {
			w.Logger.Warn("skipping unreadable library profile", "path", path, "error", err)
			continue
		}
		libs = append(libs, lp)
	}

	d, err := NewDetector(libs, w.Opts)
	if err != nil {
		return err
	}
	w.current = d
	w.Logger.Info("rebuilt detection index", "dir", w.Dir, "libraries", len(libs))
	if w.OnRebuild != nil {
		w.OnRebuild(d)
	}
	return nil
}
