// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aleutian-labs/libid/graph"
)

func TestDefaultSolver_ExactMatch(t *testing.T) {
	lib := graph.LibraryView{
		ClassCount: 2,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1", "h2")},
			"Lb": {Name: "Lb", Signatures: sigs("h3")},
		},
		Ghosts: graph.NewGhostGraph(),
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1", "h2")},
			"Ab": {Name: "Ab", Signatures: sigs("h3")},
		},
		Graph: graph.NewClassGraph(),
	}

	m := BuildModel(lib, app, Options{Mode: Accurate})
	sol, err := NewDefaultSolver().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Matched) != 2 {
		t.Fatalf("expected both classes matched, got %+v", sol.Matched)
	}
}

func TestDefaultSolver_OneToOneEnforced(t *testing.T) {
	lib := graph.LibraryView{
		ClassCount: 1,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1")},
		},
		Ghosts: graph.NewGhostGraph(),
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1")},
			"Ab": {Name: "Ab", Signatures: sigs("h1")},
		},
		Graph: graph.NewClassGraph(),
	}

	m := BuildModel(lib, app, Options{Mode: Scalable})
	sol, err := NewDefaultSolver().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Matched) != 1 {
		t.Fatalf("expected exactly one match under one-to-one constraint, got %+v", sol.Matched)
	}
}

func TestDefaultSolver_EmptyModelIsInfeasible(t *testing.T) {
	m := &Model{Opts: Options{Mode: Scalable}}
	_, err := NewDefaultSolver().Solve(context.Background(), m)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got %v", err)
	}
}

func TestDefaultSolver_TimeoutOnExpiredBudget(t *testing.T) {
	lib := graph.LibraryView{
		ClassCount: 1,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1")},
		},
		Ghosts: graph.NewGhostGraph(),
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1")},
		},
		Graph: graph.NewClassGraph(),
	}
	m := BuildModel(lib, app, Options{Mode: Scalable, SolverTimeBudget: time.Nanosecond})
	time.Sleep(time.Millisecond)

	_, err := NewDefaultSolver().Solve(context.Background(), m)
	if !errors.Is(err, ErrSolverTimeout) {
		t.Fatalf("expected ErrSolverTimeout, got %v", err)
	}
}

func TestCountConsistentCallSites_LibraryCountMustCoverAppCount(t *testing.T) {
	libCalls := []graph.CallSite{{CallerMethod: "m()V", CalleeMethod: "n()V", Count: 3}}
	appCallsCovered := []graph.CallSite{{CallerMethod: "m()V", CalleeMethod: "n()V", Count: 1}}
	appCallsExceeding := []graph.CallSite{{CallerMethod: "m()V", CalleeMethod: "n()V", Count: 5}}

	if got := countConsistentCallSites(libCalls, appCallsCovered); got != 1 {
		t.Fatalf("expected app count <= lib count to be consistent, got %d", got)
	}
	if got := countConsistentCallSites(libCalls, appCallsExceeding); got != 0 {
		t.Fatalf("expected app count > lib count to be inconsistent, got %d", got)
	}
}

func TestObjective_IncludesInvocationAndHierarchyTerms(t *testing.T) {
	libGraph := graph.NewClassGraph()
	libGraph.AddInvocation("La", "Lb", "m()V", "n()V")
	libGraph.SetSuperclass("La", "Lb")

	appGraph := graph.NewClassGraph()
	appGraph.AddInvocation("Aa", "Ab", "m()V", "n()V")
	appGraph.SetSuperclass("Aa", "Ab")

	lib := graph.LibraryView{
		ClassCount: 2,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1")},
			"Lb": {Name: "Lb", Signatures: sigs("h2")},
		},
		Graph:  libGraph,
		Ghosts: graph.NewGhostGraph(),
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1")},
			"Ab": {Name: "Ab", Signatures: sigs("h2")},
		},
		Graph: appGraph,
	}

	m := BuildModel(lib, app, Options{Mode: Accurate})
	sol, err := NewDefaultSolver().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	baseWeight := m.weight["Aa"] + m.weight["Ab"]
	if sol.Objective <= baseWeight {
		t.Fatalf("expected objective to exceed base weight sum due to invocation/superclass bonus, got %v <= %v", sol.Objective, baseWeight)
	}
}
