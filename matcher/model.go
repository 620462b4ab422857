// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package matcher decides, for one candidate library and the app classes
// that retrieved it, which library classes are present in the app and
// which app classes realize them, the structural matching step. The
// decision problem is posed as an integer program (one-to-one class
// matching, invocation/package/superclass/interface consistency
// constraints) and solved behind a narrow Solver interface so the
// matching logic never depends on a specific solver implementation.
package matcher

import (
	"time"

	"github.com/aleutian-labs/libid/graph"
)

// Mode selects which constraint set BuildModel assembles.
type Mode int

const (
	// Accurate builds the full model: invocation, package-hierarchy,
	// superclass, and interface consistency constraints, plus the ghost
	// contraction pre-pass.
	Accurate Mode = iota

	// Scalable skips every relationship constraint and degenerates to a
	// weighted bipartite matching under class-uniqueness only.
	Scalable
)

// Options configures model construction and solving.
type Options struct {
	Mode Mode

	// ConsiderRepackaging selects the "flattened" package-matching mode
	// (matched classes must share one app package drawn from an
	// allow-list of childless packages) over the default hierarchical mode.
	ConsiderRepackaging bool

	// GhostComponentThreshold is the minimum matched/total ratio a
	// connected component must retain after ghost contraction to survive.
	// Defaults to 0 (never drop a component purely on size) and is never
	// raised automatically, raising it is a user-visible, deliberate
	// precision/recall tradeoff, not something the matcher should do on
	// its own initiative.
	GhostComponentThreshold float64

	// SolverTimeBudget bounds one Solve call; exceeding it rejects the
	// candidate (ErrSolverTimeout) rather than blocking other candidates.
	SolverTimeBudget time.Duration
}

// ClassPair is a candidate (library class, app class) match.
type ClassPair struct {
	Lib string
	App string
}

// Model is everything the solver needs to evaluate and compare matchings
// for one (library, app-subset) pair: the candidate pairs worth
// considering and the per-app-class weight used in the objective.
type Model struct {
	Lib   graph.LibraryView
	App   graph.AppView
	Opts  Options
	Pairs []ClassPair

	weight map[string]float64 // app class name -> w[a]
}

// BuildModel assembles a Model from a candidate library's view and the
// app classes under consideration. Candidate pairs are every (l,a) whose
// signature sets share at least one hex digest, the structural evidence
// that made them worth considering in the first place (retrieval already
// filtered the app-class set down to this candidate set upstream).
func BuildModel(lib graph.LibraryView, app graph.AppView, opts Options) *Model {
	m := &Model{Lib: lib, App: app, Opts: opts}
	if m.Lib.Graph == nil {
		m.Lib.Graph = graph.NewClassGraph()
	}
	if m.App.Graph == nil {
		m.App.Graph = graph.NewClassGraph()
	}
	m.Pairs = candidatePairs(lib, app)
	if opts.Mode == Accurate {
		m.Pairs = contractGhosts(lib, app, m.Pairs, opts)
	}
	m.weight = computeWeights(lib, app)
	return m
}

// candidatePairs returns every (l,a) pair with nonempty signature overlap.
func candidatePairs(lib graph.LibraryView, app graph.AppView) []ClassPair {
	var pairs []ClassPair
	for lName, lRec := range lib.Classes {
		for aName, aRec := range app.Classes {
			if signatureOverlap(lRec.Signatures, aRec.Signatures) > 0 {
				pairs = append(pairs, ClassPair{Lib: lName, App: aName})
			}
		}
	}
	return pairs
}

func signatureOverlap(a, b map[string]struct{}) int {
	n := 0
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for k := range small {
		if _, ok := big[k]; ok {
			n++
		}
	}
	return n
}

// computeWeights computes w[a] = 1/|L.class_count| + 1e-4*|signatures(a)|
// for every app class under consideration.
func computeWeights(lib graph.LibraryView, app graph.AppView) map[string]float64 {
	w := make(map[string]float64, len(app.Classes))
	classCount := lib.ClassCount
	if classCount == 0 {
		classCount = 1
	}
	base := 1.0 / float64(classCount)
	for name, rec := range app.Classes {
		w[name] = base + 1e-4*float64(len(rec.Signatures))
	}
	return w
}
