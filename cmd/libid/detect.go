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
	"time"

	"github.com/spf13/cobra"

	"github.com/aleutian-labs/libid/cmd/libid/tui"
	"github.com/aleutian-labs/libid/detect"
	"github.com/aleutian-labs/libid/internal/sdkset"
	"github.com/aleutian-labs/libid/internal/storefactory"
	"github.com/aleutian-labs/libid/internal/telemetry"
	"github.com/aleutian-labs/libid/lshindex"
	"github.com/aleutian-labs/libid/matcher"
	"github.com/aleutian-labs/libid/profile"
)

var (
	detectOutput              string
	detectOverwrite           bool
	detectIncludeSDK          bool
	detectWorkers             int
	detectScalable            bool
	detectConsiderRepackaging bool
	detectVerbose             bool
	detectAppFiles            []string
	detectAppDir              string
	detectLibFiles            []string
	detectLibDir              string
	detectWeaviateURL         string
	detectWeaviateClass       string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect which libraries, by name and version, an app's binary embeds",
	RunE:  runDetectCommand,
}

func init() {
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "", "output folder (defaults to config's detection.output_dir)")
	detectCmd.Flags().BoolVarP(&detectOverwrite, "overwrite", "w", false, "overwrite the output file if it exists")
	detectCmd.Flags().BoolVarP(&detectIncludeSDK, "include-sdk", "b", false, "consider built-in Android SDK classes during matching")
	detectCmd.Flags().IntVarP(&detectWorkers, "processes", "p", 0, "number of worker goroutines [default: all CPUs]")
	detectCmd.Flags().BoolVarP(&detectScalable, "scalable", "s", false, "run in Scalable mode instead of Accurate mode")
	detectCmd.Flags().BoolVarP(&detectConsiderRepackaging, "consider-repackaging", "r", false, "consider classes repackaging")
	detectCmd.Flags().BoolVarP(&detectVerbose, "verbose", "v", false, "show debug information")
	detectCmd.Flags().StringSliceVar(&detectAppFiles, "af", nil, "the app profiles")
	detectCmd.Flags().StringVar(&detectAppDir, "ad", "", "the folder that contains app profiles")
	detectCmd.Flags().StringSliceVar(&detectLibFiles, "lf", nil, "the library profiles")
	detectCmd.Flags().StringVar(&detectLibDir, "ld", "", "the folder that contains library profiles")
	detectCmd.Flags().StringVar(&detectWeaviateURL, "weaviate-url", "", "use a remote Weaviate cluster as the LSH index instead of the in-process Ensemble")
	detectCmd.Flags().StringVar(&detectWeaviateClass, "weaviate-class", "", "Weaviate class name [default: lshindex.WeaviateClassName]")
}

func runDetectCommand(cmd *cobra.Command, args []string) error {
	if detectVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	outputDir := detectOutput
	if outputDir == "" {
		outputDir = cfg.Detection.OutputDir
	}
	overwrite := detectOverwrite || cfg.Detection.Overwrite
	workers := detectWorkers
	if workers == 0 {
		workers = cfg.Detection.Workers
	}

	ctx := context.Background()
	libPaths, err := discoverProfiles(detectLibFiles, detectLibDir)
	if err != nil {
		return err
	}
	appPaths, err := discoverProfiles(detectAppFiles, detectAppDir)
	if err != nil {
		return err
	}

	store, closeStore, err := storefactory.Build(ctx, cfg.Storage, outputDir, slog.Default())
	if err != nil {
		return err
	}
	defer closeStore()

	libs := make([]*profile.LibraryProfile, 0, len(libPaths))
	for _, path := range libPaths {
		lp, err := store.LoadLibrary(ctx, path)
		if err != nil {
			slog.Error("skipping unreadable library profile", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		libs = append(libs, lp)
	}

	opts, err := buildDetectorOptions(ctx, libs)
	if err != nil {
		return err // index construction failure is fatal per the CLI exit-code contract
	}

	var sdk *sdkset.Set
	if !detectIncludeSDK {
		sdk, err = sdkset.Default()
		if err != nil {
			return fmt.Errorf("loading SDK class set: %w", err)
		}
	}

	detector, err := detect.NewDetector(libs, opts)
	if err != nil {
		return fmt.Errorf("building detector: %w", err)
	}

	progress := tui.NewProgress("detecting", len(appPaths))
	defer progress.Close()

	pool := detect.NewWorkerPool(workers)
	return pool.Run(ctx, len(appPaths), func(ctx context.Context, i int) error {
		path := appPaths[i]
		start := time.Now()
		err := detectOneApp(ctx, store, detector, sdk, outputDir, path, overwrite)
		if err != nil {
			slog.Error("detection failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		telemetry.RecordDetection(detectorModeLabel(), 0, 0, time.Since(start).Seconds())
		progress.Advance(path, err)
		return nil // per-app errors are logged, never fatal (spec §6 exit-code contract)
	})
}

func detectOneApp(ctx context.Context, store profile.Store, detector *detect.Detector, sdk *sdkset.Set, outputDir, path string, overwrite bool) error {
	app, err := store.LoadApp(ctx, path)
	if err != nil {
		return fmt.Errorf("loading app profile: %w", err)
	}
	if sdk != nil {
		for className := range app.ClassesSignatures {
			if sdk.Contains(className) {
				delete(app.ClassesSignatures, className)
			}
		}
	}
	result, err := detector.Detect(ctx, app)
	if err != nil {
		return fmt.Errorf("detecting: %w", err)
	}
	if err := detect.WriteResult(outputDir, result, overwrite); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func detectorModeLabel() string {
	if detectScalable {
		return "scalable"
	}
	return "accurate"
}

// buildDetectorOptions assembles DetectorOptions from the CLI flags and,
// when --weaviate-url is set, pre-populates a remote WeaviateIndex with
// every library class before the Detector is built (unlike the default
// Ensemble, WeaviateIndex has no bulk Build, each class is Upserted
// individually).
func buildDetectorOptions(ctx context.Context, libs []*profile.LibraryProfile) (detect.DetectorOptions, error) {
	mode := matcher.Accurate
	if detectScalable {
		mode = matcher.Scalable
	}
	budget := cfg.Detection.SolverTimeBudget
	if budget == 0 {
		budget = 5 * time.Second
	}
	opts := detect.DetectorOptions{
		Logger:                  slog.Default(),
		Mode:                    mode,
		ConsiderRepackaging:     detectConsiderRepackaging || cfg.Detection.ConsiderRepackaging,
		GhostComponentThreshold: cfg.Detection.GhostComponentThreshold,
		SolverTimeBudget:        budget,
	}

	if detectWeaviateURL == "" {
		return opts, nil
	}

	client, err := newWeaviateClient(detectWeaviateURL)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", lshindex.ErrIndexBuild, err)
	}
	index, err := lshindex.NewWeaviateIndex(ctx, client, lshindex.WeaviateConfig{ClassName: detectWeaviateClass})
	if err != nil {
		return opts, fmt.Errorf("%w: %v", lshindex.ErrIndexBuild, err)
	}
	for _, lp := range libs {
		nameVersion := lp.Name + "_" + lp.Version
		for className, sigList := range lp.ClassesSignatures {
			sig := make(map[string]struct{}, len(sigList))
			for _, s := range sigList {
				sig[s] = struct{}{}
			}
			key := lshindex.CandidateKey{
				LibraryNameVersion:  nameVersion,
				RootPackage:         lp.RootPackage,
				ClassCount:          lp.ClassesNum,
				TotalSignatureCount: lp.TotalSignatureCount(),
				Category:            lp.Category,
				ClassName:           className,
			}
			if err := index.Upsert(ctx, key, sig); err != nil {
				return opts, fmt.Errorf("%w: upserting %s/%s: %v", lshindex.ErrIndexBuild, nameVersion, className, err)
			}
		}
	}
	opts.Index = index
	return opts, nil
}
