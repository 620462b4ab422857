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
	"sort"
	"time"

	"github.com/aleutian-labs/libid/graph"
)

// ErrSolverTimeout is returned when a Solve call exceeds its time budget.
var ErrSolverTimeout = errors.New("matcher: solver time budget exceeded")

// ErrInfeasible is returned when no candidate pair survives constraint
// enforcement.
var ErrInfeasible = errors.New("matcher: no feasible match")

// defaultSolverTimeBudget is used when Options.SolverTimeBudget is zero.
const defaultSolverTimeBudget = 5 * time.Second

// Solution is a solved Model's output: the accepted (l,a) pairs and the
// objective value they achieve.
type Solution struct {
	Matched   []ClassPair
	Objective float64
}

// Solver turns a Model into a Solution. Isolated behind this interface so
// the matching logic never depends on a specific solver implementation;
// no MIP library was available to ground a binding on, so the default
// implementation (defaultSolver)
// is a hand-rolled greedy-assignment-plus-local-repair heuristic, not an
// exact solver; it is swappable via this interface for anyone who later
// wires in a real MIP backend.
type Solver interface {
	Solve(ctx context.Context, m *Model) (Solution, error)
}

// NewDefaultSolver returns the in-process heuristic Solver.
func NewDefaultSolver() Solver {
	return defaultSolver{}
}

type defaultSolver struct{}

func (defaultSolver) Solve(ctx context.Context, m *Model) (Solution, error) {
	if len(m.Pairs) == 0 {
		return Solution{}, ErrInfeasible
	}

	budget := m.Opts.SolverTimeBudget
	if budget <= 0 {
		budget = defaultSolverTimeBudget
	}
	deadline := time.Now().Add(budget)

	matched, err := greedyAssign(ctx, deadline, m)
	if err != nil {
		return Solution{}, err
	}
	if m.Opts.Mode == Accurate {
		matched, err = enforceConsistency(ctx, deadline, m, matched)
		if err != nil {
			return Solution{}, err
		}
	}
	if len(matched) == 0 {
		return Solution{}, ErrInfeasible
	}
	return Solution{Matched: matched, Objective: objective(m, matched)}, nil
}

// greedyAssign scores every candidate pair by signature overlap weighted
// by w[a], then assigns pairs in descending score order, skipping any
// pair whose library or app class is already taken, the standard greedy
// approximation to maximum-weight bipartite matching.
func greedyAssign(ctx context.Context, deadline time.Time, m *Model) ([]ClassPair, error) {
	type scored struct {
		pair  ClassPair
		score float64
	}
	scoredPairs := make([]scored, len(m.Pairs))
	for i, p := range m.Pairs {
		overlap := signatureOverlap(m.Lib.Classes[p.Lib].Signatures, m.App.Classes[p.App].Signatures)
		scoredPairs[i] = scored{pair: p, score: float64(overlap) * m.weight[p.App]}
	}
	sort.Slice(scoredPairs, func(i, j int) bool { return scoredPairs[i].score > scoredPairs[j].score })

	libTaken := make(map[string]bool)
	appTaken := make(map[string]bool)
	var matched []ClassPair
	for i, sp := range scoredPairs {
		if i%4096 == 0 {
			if err := checkBudget(ctx, deadline); err != nil {
				return nil, err
			}
		}
		if libTaken[sp.pair.Lib] || appTaken[sp.pair.App] {
			continue
		}
		libTaken[sp.pair.Lib] = true
		appTaken[sp.pair.App] = true
		matched = append(matched, sp.pair)
	}
	return matched, nil
}

func checkBudget(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if time.Now().After(deadline) {
		return ErrSolverTimeout
	}
	return nil
}

// objective computes Σ_a w[a]·au[a] + 1e-4·Σ mm + 1e-4·(parent_used + interface_used).
func objective(m *Model, matched []ClassPair) float64 {
	total := 0.0
	for _, p := range matched {
		total += m.weight[p.App]
	}
	total += 1e-4 * float64(countMatchedInvocations(m, matched))
	total += 1e-4 * float64(countParentAndInterfaceUsage(m, matched))
	return total
}

func countMatchedInvocations(m *Model, matched []ClassPair) int {
	matchedLib := make(map[string]string, len(matched))
	for _, p := range matched {
		matchedLib[p.Lib] = p.App
	}
	count := 0
	for _, p := range matched {
		libEdges := m.Lib.Graph.Invocations[p.Lib]
		appEdges := m.App.Graph.Invocations[p.App]
		for _, le := range libEdges {
			matchedApp, ok := matchedLib[le.Callee]
			if !ok {
				continue
			}
			for _, ae := range appEdges {
				if ae.Callee != matchedApp {
					continue
				}
				count += countConsistentCallSites(le.Calls, ae.Calls)
			}
		}
	}
	return count
}

// countConsistentCallSites counts library call sites whose call count is
// covered by an app call site with the same descriptors and at least as
// many observed calls, the `library count ≥ app count` asymmetry
// preserved exactly as recorded: a library's call count reflects the
// instrumented source; an obfuscated/inlined app build may observe the
// same call fewer times but never needs to observe it more.
func countConsistentCallSites(libCalls, appCalls []graph.CallSite) int {
	count := 0
	for _, lc := range libCalls {
		for _, ac := range appCalls {
			if lc.CallerMethod == ac.CallerMethod && lc.CalleeMethod == ac.CalleeMethod && lc.Count >= ac.Count {
				count++
				break
			}
		}
	}
	return count
}

func countParentAndInterfaceUsage(m *Model, matched []ClassPair) int {
	matchedLib := make(map[string]string, len(matched))
	for _, p := range matched {
		matchedLib[p.Lib] = p.App
	}
	count := 0
	for _, p := range matched {
		if super, ok := m.Lib.Graph.Superclass[p.Lib]; ok {
			if _, ok := matchedLib[super]; ok {
				count++
			}
		}
		for _, iface := range m.Lib.Graph.Interfaces[p.Lib] {
			if _, ok := matchedLib[iface]; ok {
				count++
			}
		}
	}
	return count
}
