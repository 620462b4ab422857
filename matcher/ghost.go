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
	"strings"

	"github.com/aleutian-labs/libid/graph"
)

// contractGhosts implements the ghost-handling pre-pass: before building
// the model, remove app neighbors that correspond to a matched library
// class's ghost neighbors, then keep only connected components that still
// contain at least one candidate match.
//
// For Call-kind ghost edges, the app-side neighbor is removed only when
// the app's call descriptors to that neighbor are a subset of the
// library's recorded ghost-call descriptors, an app call the library
// never made is real structural evidence, not an artifact of the
// library's own stripped dependency, so it survives contraction. For
// Interface/Superclass-kind ghost edges, the neighbor is removed
// unconditionally: a declared interface or superclass relationship is
// singular, so any corresponding app relationship to a class outside the
// candidate set reflects the same missing-dependency shape.
func contractGhosts(lib graph.LibraryView, app graph.AppView, pairs []ClassPair, opts Options) []ClassPair {
	if len(pairs) == 0 || app.Graph == nil || lib.Ghosts == nil {
		return pairs
	}

	nodes := make(map[string]struct{}, len(app.Classes))
	for name := range app.Classes {
		nodes[name] = struct{}{}
	}
	adj := app.Graph.UndirectedAdjacency(nodes)

	matchedByApp := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		matchedByApp[p.App] = true
	}

	for _, p := range pairs {
		for _, ghostEdge := range lib.Ghosts.OutEdges(p.Lib) {
			removeGhostCorrespondingNeighbor(adj, app, p.App, p.Lib, ghostEdge, opts)
		}
	}

	components := graph.ConnectedComponents(adj)
	survivors := make(map[string]struct{})
	for _, component := range components {
		matched := 0
		for _, n := range component {
			if matchedByApp[n] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		ratio := float64(matched) / float64(len(component))
		if ratio < opts.GhostComponentThreshold && len(component) > 1 {
			continue
		}
		for _, n := range component {
			survivors[n] = struct{}{}
		}
	}

	var kept []ClassPair
	for _, p := range pairs {
		if _, ok := survivors[p.App]; ok {
			kept = append(kept, p)
		}
	}
	return kept
}

// removeGhostCorrespondingNeighbor mutates adj, dropping the edge from
// appClass to whichever app-graph neighbor corresponds to ghostEdge's
// target, per the kind-specific rule above. When repackaging is not being
// considered, a neighbor is only removed if its depth relative to appClass
// matches the ghost target's depth relative to libClass in the library,
// a renamed-but-not-repackaged class keeps its package depth, so a
// mismatch means the app neighbor isn't actually the library's stripped
// dependency and the edge reflects real app structure instead.
func removeGhostCorrespondingNeighbor(adj map[string]map[string]struct{}, app graph.AppView, appClass, libClass string, ghostEdge *graph.GhostEdge, opts Options) {
	depthOK := func(neighbor string) bool {
		return opts.ConsiderRepackaging || classDepth(neighbor)-classDepth(appClass) == classDepth(ghostEdge.Dst)-classDepth(libClass)
	}
	switch ghostEdge.Kind {
	case graph.GhostCall:
		for _, inv := range app.Graph.Invocations[appClass] {
			if !appCallDescriptorsSubsetOfGhost(inv, ghostEdge) {
				continue
			}
			if !depthOK(inv.Callee) {
				continue
			}
			delete(adj[appClass], inv.Callee)
			delete(adj[inv.Callee], appClass)
		}
	case graph.GhostInterface:
		for _, iface := range app.Graph.Interfaces[appClass] {
			if !depthOK(iface) {
				continue
			}
			delete(adj[appClass], iface)
			delete(adj[iface], appClass)
		}
	case graph.GhostSuperclass:
		if super, ok := app.Graph.Superclass[appClass]; ok && depthOK(super) {
			delete(adj[appClass], super)
			delete(adj[super], appClass)
		}
	}
}

// classDepth counts package-separator components in a class's descriptor
// name, mirroring the original's class.count("/") depth measure.
func classDepth(className string) int {
	return strings.Count(className, "/")
}

// appCallDescriptorsSubsetOfGhost reports whether every (caller, callee)
// method-descriptor pair in inv also appears in the ghost edge's
// accumulated method list.
func appCallDescriptorsSubsetOfGhost(inv graph.InvocationEdge, ghostEdge *graph.GhostEdge) bool {
	if len(inv.Calls) == 0 {
		return false
	}
	ghostPairs := make(map[string]struct{}, len(ghostEdge.Method))
	for _, gm := range ghostEdge.Method {
		ghostPairs[gm.CallerMethod+"->"+gm.CalleeMethod] = struct{}{}
	}
	for _, c := range inv.Calls {
		if _, ok := ghostPairs[c.CallerMethod+"->"+c.CalleeMethod]; !ok {
			return false
		}
	}
	return true
}
