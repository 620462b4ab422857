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
	"time"

	"github.com/aleutian-labs/libid/graph"
)

// Match runs the whole structural-matching step for one candidate library
// against one app-class subset: builds the model according to opts.Mode
// and solves it with solver.
func Match(ctx context.Context, solver Solver, lib graph.LibraryView, app graph.AppView, opts Options) (Solution, error) {
	model := BuildModel(lib, app, opts)
	return solver.Solve(ctx, model)
}

// enforceConsistency repeatedly drops matched pairs that violate
// package-hierarchy, superclass, or interface consistency until a
// fixpoint is reached, approximating the ILP's hard constraints (3-5)
// through iterative local repair rather than joint optimization.
func enforceConsistency(ctx context.Context, deadline time.Time, m *Model, matched []ClassPair) ([]ClassPair, error) {
	for iteration := 0; ; iteration++ {
		if err := checkBudget(ctx, deadline); err != nil {
			return nil, err
		}
		next, changed := repairOnce(m, matched)
		matched = next
		if !changed || len(matched) == 0 {
			return matched, nil
		}
		if iteration > 64 {
			// Fixpoint should converge in a handful of passes given each
			// pass strictly shrinks the match set; this bounds runaway
			// oscillation from a malformed model instead of looping forever.
			return matched, nil
		}
	}
}

func repairOnce(m *Model, matched []ClassPair) ([]ClassPair, bool) {
	if m.Opts.ConsiderRepackaging {
		if next, changed := repairFlattenedPackage(m, matched); changed {
			return next, true
		}
	} else {
		if next, changed := repairHierarchicalPackage(m, matched); changed {
			return next, true
		}
	}
	if next, changed := repairSuperclass(m, matched); changed {
		return next, true
	}
	if next, changed := repairInterfaces(m, matched); changed {
		return next, true
	}
	return matched, false
}

// repairHierarchicalPackage enforces that every library package maps to at
// most one app package and vice versa (pm[(lp,ap)] matched at most once),
// then walks the same one-to-one check up the package hierarchy via
// graph.ParentPackage: pm[parent(lp),parent(ap)] must also hold one-to-one,
// and so on up to graph.RootPackage. A pair whose mapping conflicts with an
// earlier-scored pair at any level, leaf or ancestor, is dropped.
func repairHierarchicalPackage(m *Model, matched []ClassPair) ([]ClassPair, bool) {
	libPkg := make([]string, len(matched))
	appPkg := make([]string, len(matched))
	alive := make([]bool, len(matched))
	for i, p := range matched {
		libPkg[i] = graph.ClassPackage(p.Lib)
		appPkg[i] = graph.ClassPackage(p.App)
		alive[i] = true
	}

	changed := false
	for {
		libToApp := make(map[string]string)
		appToLib := make(map[string]string)
		anyAlive := false
		for i := range matched {
			if !alive[i] {
				continue
			}
			anyAlive = true
			lp, ap := libPkg[i], appPkg[i]
			if existing, ok := libToApp[lp]; ok && existing != ap {
				alive[i] = false
				changed = true
				continue
			}
			if existing, ok := appToLib[ap]; ok && existing != lp {
				alive[i] = false
				changed = true
				continue
			}
			libToApp[lp] = ap
			appToLib[ap] = lp
		}
		if !anyAlive {
			break
		}

		allRoot := true
		for i := range matched {
			if !alive[i] {
				continue
			}
			if libPkg[i] != graph.RootPackage || appPkg[i] != graph.RootPackage {
				allRoot = false
			}
			libPkg[i] = graph.ParentPackage(libPkg[i])
			appPkg[i] = graph.ParentPackage(appPkg[i])
		}
		if allRoot {
			break
		}
	}

	var kept []ClassPair
	for i, p := range matched {
		if alive[i] {
			kept = append(kept, p)
		}
	}
	return kept, changed
}

// repairFlattenedPackage enforces the flattened-mode constraint: every
// matched app class must share a single app package (the repackaged
// case assumes all of a library's classes were moved into one
// destination package). Only childless app packages (no sub-package among
// the app's classes) are allowed; among those, the package with the largest
// match count is kept.
func repairFlattenedPackage(m *Model, matched []ClassPair) ([]ClassPair, bool) {
	appPackages := make(map[string]struct{}, len(m.App.Classes))
	for name := range m.App.Classes {
		appPackages[graph.ClassPackage(name)] = struct{}{}
	}
	counts := make(map[string]int)
	for _, p := range matched {
		pkg := graph.ClassPackage(p.App)
		if graph.IsChildless(pkg, appPackages) {
			counts[pkg]++
		}
	}
	best := ""
	bestCount := -1
	for pkg, count := range counts {
		if count > bestCount {
			best, bestCount = pkg, count
		}
	}
	var kept []ClassPair
	changed := false
	for _, p := range matched {
		if bestCount >= 0 && graph.ClassPackage(p.App) == best {
			kept = append(kept, p)
		} else {
			changed = true
		}
	}
	return kept, changed
}

// repairSuperclass drops pairs that violate superclass consistency: if
// both sides declare a non-SDK superclass, the superclass pair must also
// be matched; if only the app side does, the pair is dropped unless that
// app superclass is itself unmatched anywhere.
func repairSuperclass(m *Model, matched []ClassPair) ([]ClassPair, bool) {
	matchedLib := make(map[string]string, len(matched))
	matchedAppSupers := make(map[string]bool)
	for _, p := range matched {
		matchedLib[p.Lib] = p.App
	}
	for _, p := range matched {
		if super, ok := m.App.Graph.Superclass[p.App]; ok {
			matchedAppSupers[super] = isAppClassMatched(matched, super)
		}
	}

	var kept []ClassPair
	changed := false
	for _, p := range matched {
		libSuper, libHasSuper := m.Lib.Graph.Superclass[p.Lib]
		appSuper, appHasSuper := m.App.Graph.Superclass[p.App]

		switch {
		case libHasSuper && appHasSuper:
			matchedApp, ok := matchedLib[libSuper]
			if !ok || matchedApp != appSuper {
				changed = true
				continue
			}
		case appHasSuper && !libHasSuper:
			if isAppClassMatched(matched, appSuper) {
				changed = true
				continue
			}
		}
		kept = append(kept, p)
	}
	return kept, changed
}

func isAppClassMatched(matched []ClassPair, appClass string) bool {
	for _, p := range matched {
		if p.App == appClass {
			return true
		}
	}
	return false
}

// repairInterfaces enforces interface consistency as pairwise matching:
// for each pair, every one of the library class's non-SDK interfaces that
// is itself matched must match to one of the app class's non-SDK
// interfaces, and the counts must agree, interfaces match as a block,
// never partially.
func repairInterfaces(m *Model, matched []ClassPair) ([]ClassPair, bool) {
	matchedLib := make(map[string]string, len(matched))
	appMatched := make(map[string]struct{}, len(matched))
	for _, p := range matched {
		matchedLib[p.Lib] = p.App
		appMatched[p.App] = struct{}{}
	}

	var kept []ClassPair
	changed := false
	for _, p := range matched {
		libIfaces := m.Lib.Graph.Interfaces[p.Lib]
		appIfaceSet := make(map[string]struct{}, len(m.App.Graph.Interfaces[p.App]))
		for _, a := range m.App.Graph.Interfaces[p.App] {
			appIfaceSet[a] = struct{}{}
		}

		matchedLibIfaceCount := 0
		agree := 0
		for _, li := range libIfaces {
			matchedApp, ok := matchedLib[li]
			if !ok {
				continue
			}
			matchedLibIfaceCount++
			if _, ok := appIfaceSet[matchedApp]; ok {
				agree++
			}
		}
		matchedAppIfaceCount := 0
		for a := range appIfaceSet {
			if _, ok := appMatched[a]; ok {
				matchedAppIfaceCount++
			}
		}
		if matchedLibIfaceCount != agree || matchedAppIfaceCount != agree {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	return kept, changed
}
