// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package serverrt wires together the pieces needed to run libid's HTTP
// API, telemetry, storage, an initial or watched detection index, so
// `libid serve` and the standalone cmd/libidserver binary share the exact
// same startup/shutdown sequence instead of maintaining it twice.
package serverrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/detect"
	"github.com/aleutian-labs/libid/internal/config"
	"github.com/aleutian-labs/libid/internal/sdkset"
	"github.com/aleutian-labs/libid/internal/storefactory"
	"github.com/aleutian-labs/libid/internal/telemetry"
	"github.com/aleutian-labs/libid/matcher"
	"github.com/aleutian-labs/libid/profile"
	"github.com/aleutian-labs/libid/services/api"
)

// Options overrides the values Run otherwise takes from cfg, letting each
// entry point expose its own flag set without duplicating defaulting logic.
type Options struct {
	Addr     string
	LibDir   string
	Watch    bool
	Scalable bool

	// Parsers is tried in order, by file extension, for every POST
	// /v1/profile request. Defaults to a FixtureParser (".json" scenario
	// fixtures) plus an ExternalToolParser for real containers.
	Parsers []bytecode.Parser
}

// dispatchParser picks among several Parsers by file extension, so a
// single detect.Profiler can serve both real binaries and JSON fixtures.
type dispatchParser struct{ parsers []bytecode.Parser }

func (d dispatchParser) Parse(ctx context.Context, path string) ([]bytecode.Class, bytecode.AppMeta, error) {
	ext := filepath.Ext(path)
	p, ok := bytecode.Supports(d.parsers, ext)
	if !ok {
		return nil, bytecode.AppMeta{}, fmt.Errorf("no parser registered for extension %q", ext)
	}
	return p.Parse(ctx, path)
}

func (d dispatchParser) Ext() []string {
	var exts []string
	for _, p := range d.parsers {
		exts = append(exts, p.Ext()...)
	}
	return exts
}

// Run blocks serving the libid HTTP API until ctx is canceled, then drains
// in-flight requests and tears down telemetry before returning.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	t, err := telemetry.Setup(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	sdk, err := sdkset.Default()
	if err != nil {
		return fmt.Errorf("loading SDK class set: %w", err)
	}
	parsers := opts.Parsers
	if len(parsers) == 0 {
		parsers = []bytecode.Parser{
			bytecode.FixtureParser{},
			bytecode.ExternalToolParser{Command: "libid-bytecode-extract", SupportedExt: []string{".apk", ".dex", ".jar"}},
		}
	}
	parser := dispatchParser{parsers: parsers}
	store, closeStore, err := storefactory.Build(ctx, cfg.Storage, cfg.Profiling.OutputDir, slog.Default())
	if err != nil {
		return err
	}
	defer closeStore()

	profiler := detect.NewProfiler(sdk, parser, store, slog.Default())

	mode := matcher.Accurate
	if opts.Scalable || cfg.Detection.Scalable {
		mode = matcher.Scalable
	}
	budget := cfg.Detection.SolverTimeBudget
	if budget == 0 {
		budget = 5 * time.Second
	}
	detOpts := detect.DetectorOptions{
		Logger:                  slog.Default(),
		Mode:                    mode,
		ConsiderRepackaging:     cfg.Detection.ConsiderRepackaging,
		GhostComponentThreshold: cfg.Detection.GhostComponentThreshold,
		SolverTimeBudget:        budget,
	}

	libDir := opts.LibDir
	if libDir == "" {
		libDir = cfg.Detection.OutputDir
	}

	server := api.NewServer(profiler, nil)

	if opts.Watch {
		watcher := detect.NewWatcher(libDir, store, detOpts)
		watcher.OnRebuild = server.SetDetector
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("detection index watcher stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		detector, err := loadDetector(ctx, store, libDir, detOpts)
		if err != nil {
			return fmt.Errorf("building initial detection index: %w", err)
		}
		server.SetDetector(detector)
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("libid: serving", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("libid: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// loadDetector builds a one-shot Detector from every library profile found
// in dir, used when watch mode is disabled.
func loadDetector(ctx context.Context, store profile.Store, dir string, opts detect.DetectorOptions) (*detect.Detector, error) {
	paths, err := discoverProfileDir(dir)
	if err != nil {
		return nil, err
	}
	libs := make([]*profile.LibraryProfile, 0, len(paths))
	for _, path := range paths {
		lp, err := store.LoadLibrary(ctx, path)
		if err != nil {
			slog.Error("skipping unreadable library profile", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		libs = append(libs, lp)
	}
	return detect.NewDetector(libs, opts)
}

func discoverProfileDir(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
