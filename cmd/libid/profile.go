// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/cmd/libid/tui"
	"github.com/aleutian-labs/libid/detect"
	"github.com/aleutian-labs/libid/internal/distwork"
	"github.com/aleutian-labs/libid/internal/sdkset"
	"github.com/aleutian-labs/libid/internal/storefactory"
	"github.com/aleutian-labs/libid/internal/telemetry"
)

var (
	profileOutput    string
	profileOverwrite bool
	profileWorkers   int
	profileVerbose   bool
	profileFiles     []string
	profileDir       string
	profileQueueURL  string
	profileWorker    bool
	profileToolCmd   string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Extract obfuscation-resilient fingerprints from app/library binaries",
	RunE:  runProfileCommand,
}

func init() {
	profileCmd.Flags().StringVarP(&profileOutput, "output", "o", "", "output folder (defaults to config's profiling.output_dir)")
	profileCmd.Flags().BoolVarP(&profileOverwrite, "overwrite", "w", false, "overwrite the output file if it exists")
	profileCmd.Flags().IntVarP(&profileWorkers, "processes", "p", 0, "number of worker goroutines [default: all CPUs]")
	profileCmd.Flags().BoolVarP(&profileVerbose, "verbose", "v", false, "show debug information")
	profileCmd.Flags().StringSliceVarP(&profileFiles, "files", "f", nil, "the app/library binaries")
	profileCmd.Flags().StringVarP(&profileDir, "dir", "d", "", "the folder that contains app/library binaries")
	profileCmd.Flags().StringVar(&profileQueueURL, "queue", "", "NATS URL: publish profiling tasks to a distwork queue instead of running locally")
	profileCmd.Flags().BoolVar(&profileWorker, "worker", false, "run as a distwork consumer, profiling tasks published by other `profile --queue` invocations")
	profileCmd.Flags().StringVar(&profileToolCmd, "tool", "", "external dex/apk extractor command [default: libid-bytecode-extract]")
}

func runProfileCommand(cmd *cobra.Command, args []string) error {
	if profileVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	outputDir := profileOutput
	if outputDir == "" {
		outputDir = cfg.Profiling.OutputDir
	}
	overwrite := profileOverwrite || cfg.Profiling.Overwrite
	workers := profileWorkers
	if workers == 0 {
		workers = cfg.Profiling.Workers
	}

	ctx := context.Background()
	store, closeStore, err := storefactory.Build(ctx, cfg.Storage, outputDir, slog.Default())
	if err != nil {
		return err
	}
	defer closeStore()

	sdk, err := sdkset.Default()
	if err != nil {
		return fmt.Errorf("loading SDK class set: %w", err)
	}
	parsers := discoveryParsers(profileToolCmd)
	var fallback bytecode.Parser = parsers[0]
	profiler := detect.NewProfiler(sdk, fallback, store, slog.Default())

	if profileWorker {
		return runProfileWorker(ctx, profiler, parsers)
	}

	if profileQueueURL != "" {
		return publishProfileTasks(ctx, overwrite)
	}

	binaries, err := discoverBinaries(profileFiles, profileDir)
	if err != nil {
		return err
	}

	progress := tui.NewProgress("profiling", len(binaries))
	defer progress.Close()

	pool := detect.NewWorkerPool(workers)
	return pool.Run(ctx, len(binaries), func(ctx context.Context, i int) error {
		path := binaries[i]
		start := time.Now()
		err := profileOneBinary(ctx, profiler, parsers, outputDir, path, overwrite)
		if err != nil {
			slog.Error("profiling binary failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		telemetry.RecordProfiled("binary", 1, 0, time.Since(start).Seconds())
		progress.Advance(path, err)
		return nil // per-binary failures are logged, never fatal (spec §6 exit-code contract)
	})
}

// profileOneBinary parses path once to choose the matching parser and
// derive library metadata (name/version/category from the filename
// convention, root_package from the parsed class names), then delegates
// to Profiler for the actual fingerprint+save.
func profileOneBinary(ctx context.Context, profiler *detect.Profiler, parsers []bytecode.Parser, outputDir, path string, overwrite bool) error {
	ext := extOf(path)
	parser, ok := bytecode.Supports(parsers, ext)
	if !ok {
		return fmt.Errorf("no parser registered for extension %q", ext)
	}
	// A dedicated Profiler per call, not a shared mutation of profiler.Parser:
	// profileOneBinary runs concurrently across a worker pool and Profiler
	// has no per-call parser override.
	local := &detect.Profiler{SDK: profiler.SDK, Parser: parser, Store: profiler.Store, Logger: profiler.Logger}

	if isAppBinary(path) {
		if !overwrite && outputExists(outputDir, trimExtBase(path)) {
			slog.Warn("app profile already exists, skipping (use -w to overwrite)", slog.String("path", path))
			return nil
		}
		_, err := local.ProfileApp(ctx, path)
		return err
	}

	classes, _, err := parser.Parse(ctx, path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}

	name, version, category := libraryMetaFromPath(path)
	if !overwrite && outputExists(outputDir, name+"_"+version) {
		slog.Warn("library profile already exists, skipping (use -w to overwrite)", slog.String("path", path))
		return nil
	}
	meta := detect.LibraryMeta{
		Name:        name,
		Version:     version,
		Category:    category,
		RootPackage: rootPackageFromClassNames(names),
	}
	_, err = local.ProfileLibrary(ctx, path, meta)
	return err
}

func outputExists(dir, basename string) bool {
	_, err := os.Stat(filepath.Join(dir, basename+".json"))
	return err == nil
}

func trimExtBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func publishProfileTasks(ctx context.Context, overwrite bool) error {
	binaries, err := discoverBinaries(profileFiles, profileDir)
	if err != nil {
		return err
	}
	q, err := distwork.Connect(profileQueueURL, slog.Default())
	if err != nil {
		return err
	}
	defer q.Close()

	for _, path := range binaries {
		task := distwork.ProfileTask{Path: path, IsApp: isAppBinary(path)}
		if !task.IsApp {
			name, version, category := libraryMetaFromPath(path)
			task.Meta = detect.LibraryMeta{Name: name, Version: version, Category: category}
		}
		if err := q.PublishTask(task); err != nil {
			return fmt.Errorf("publishing task for %s: %w", path, err)
		}
	}
	slog.Info("published profiling tasks", slog.Int("count", len(binaries)), slog.String("queue", profileQueueURL))
	return nil
}

func runProfileWorker(ctx context.Context, profiler *detect.Profiler, parsers []bytecode.Parser) error {
	q, err := distwork.Connect(profileQueueURL, slog.Default())
	if err != nil {
		return err
	}
	defer q.Close()

	slog.Info("distwork consumer started", slog.String("queue", profileQueueURL))
	return q.Consume(ctx, func(ctx context.Context, task distwork.ProfileTask) error {
		ext := extOf(task.Path)
		parser, ok := bytecode.Supports(parsers, ext)
		if !ok {
			return fmt.Errorf("no parser registered for extension %q", ext)
		}
		profiler.Parser = parser

		if task.IsApp {
			_, err := profiler.ProfileApp(ctx, task.Path)
			return err
		}
		_, err := profiler.ProfileLibrary(ctx, task.Path, task.Meta)
		return err
	})
}
