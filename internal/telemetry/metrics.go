// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the profiling/detection pipeline
// =============================================================================

var (
	// ProfileClassesTotal counts classes fingerprinted, by outcome.
	// Labels: outcome (profiled, skipped_malformed)
	ProfileClassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libid",
		Subsystem: "profile",
		Name:      "classes_total",
		Help:      "Total classes processed while building a profile, by outcome",
	}, []string{"outcome"})

	// ProfileDurationSeconds measures wall-clock time to profile one binary.
	// Labels: kind (library, app)
	ProfileDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "libid",
		Subsystem: "profile",
		Name:      "duration_seconds",
		Help:      "Time spent profiling a single binary",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"kind"})

	// DetectCandidatesTotal counts LSH candidate libraries surfaced per app.
	DetectCandidatesTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "libid",
		Subsystem: "detect",
		Name:      "candidates_total",
		Help:      "Number of candidate libraries surfaced by the LSH index per app",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	// DetectMatchesTotal counts accepted matches, by detection mode.
	// Labels: mode (accurate, scalable)
	DetectMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libid",
		Subsystem: "detect",
		Name:      "matches_total",
		Help:      "Total accepted library matches, by detection mode",
	}, []string{"mode"})

	// DetectDurationSeconds measures end-to-end detection time for one app.
	DetectDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "libid",
		Subsystem: "detect",
		Name:      "duration_seconds",
		Help:      "End-to-end detection time for one app",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	// SolverTimeoutsTotal counts matcher.ErrSolverTimeout occurrences.
	SolverTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "libid",
		Subsystem: "detect",
		Name:      "solver_timeouts_total",
		Help:      "Total structural-match attempts that exceeded their solver time budget",
	})

	// IndexRebuildsTotal counts watch-mode index rebuilds, by outcome.
	// Labels: outcome (ok, error)
	IndexRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libid",
		Subsystem: "watch",
		Name:      "index_rebuilds_total",
		Help:      "Total LSH index rebuilds triggered by directory watch events",
	}, []string{"outcome"})
)

// RecordProfiled records the class counts of one binary's profiling pass
// and that pass's wall-clock duration.
//
// Inputs:
//   - kind: "library" or "app".
//   - classesProfiled: classes successfully fingerprinted.
//   - classesSkipped: classes skipped for being malformed.
//   - durationSec: total time spent profiling the binary.
func RecordProfiled(kind string, classesProfiled, classesSkipped int, durationSec float64) {
	ProfileClassesTotal.WithLabelValues("profiled").Add(float64(classesProfiled))
	ProfileClassesTotal.WithLabelValues("skipped_malformed").Add(float64(classesSkipped))
	ProfileDurationSeconds.WithLabelValues(kind).Observe(durationSec)
}

// RecordDetection records one completed Detect call.
//
// Inputs:
//   - mode: "accurate" or "scalable".
//   - candidates: distinct libraries surfaced by the LSH index.
//   - matches: libraries accepted into the final result.
//   - durationSec: end-to-end detection duration.
func RecordDetection(mode string, candidates, matches int, durationSec float64) {
	DetectCandidatesTotal.Observe(float64(candidates))
	DetectMatchesTotal.WithLabelValues(mode).Add(float64(matches))
	DetectDurationSeconds.Observe(durationSec)
}
