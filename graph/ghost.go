// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// GhostKind distinguishes why a ghost edge exists: the target class was
// referenced by a call, an interface declaration, or a superclass
// declaration, but is not present among the binary's parsed classes
// (stripped or external to the profiled binary).
type GhostKind int

const (
	GhostCall GhostKind = iota
	GhostInterface
	GhostSuperclass
)

// GhostMethodPair is one caller/callee method pair that reached a ghost
// target via a call edge. Unused for Interface/Superclass ghost edges.
type GhostMethodPair struct {
	CallerMethod string
	CalleeMethod string
}

type ghostKey struct {
	Src  string
	Dst  string
	Kind GhostKind
}

// GhostEdge is one edge toward a class absent from the binary.
type GhostEdge struct {
	Src    string
	Dst    string
	Kind   GhostKind
	Method []GhostMethodPair
}

// GhostGraph tracks edges whose target class is not present among the
// binary's parsed classes.
type GhostGraph struct {
	edges map[ghostKey]*GhostEdge
	order []ghostKey
}

// NewGhostGraph returns an empty GhostGraph.
func NewGhostGraph() *GhostGraph {
	return &GhostGraph{edges: make(map[ghostKey]*GhostEdge)}
}

// Add records a ghost edge from src to dst of the given kind.
//
// Rediscovery of an existing edge of the same (src, dst, kind) is handled
// asymmetrically by design, matching the behavior this port preserves:
// Call-kind rediscovery merges ghostMethod into the edge's accumulated
// method list, because two distinct call sites to the same ghost class can
// each carry independent evidence worth keeping. Interface/Superclass-kind
// rediscovery returns without modifying the existing edge, because a
// class declares a given interface or superclass exactly once, a repeat
// add is definitionally the same declaration, not new evidence.
func (g *GhostGraph) Add(src, dst string, kind GhostKind, ghostMethod []GhostMethodPair) {
	key := ghostKey{Src: src, Dst: dst, Kind: kind}
	if existing, ok := g.edges[key]; ok {
		if kind != GhostCall {
			return
		}
		existing.Method = append(existing.Method, ghostMethod...)
		return
	}
	g.edges[key] = &GhostEdge{Src: src, Dst: dst, Kind: kind, Method: append([]GhostMethodPair{}, ghostMethod...)}
	g.order = append(g.order, key)
}

// OutEdges returns every ghost edge originating at src, in insertion order.
func (g *GhostGraph) OutEdges(src string) []*GhostEdge {
	var out []*GhostEdge
	for _, key := range g.order {
		if key.Src == src {
			out = append(out, g.edges[key])
		}
	}
	return out
}

// Len reports the number of distinct ghost edges recorded.
func (g *GhostGraph) Len() int { return len(g.edges) }

// DeriveGhostGraph scans g's three relationship graphs and records a
// ghost edge for every target not present in known, the profile format
// has no separate ghost-edge table (§6), so detection reconstructs ghost
// status from the same class-presence set used everywhere else, matching
// the relationship graphs' own class-name keys.
func DeriveGhostGraph(g *ClassGraph, known map[string]struct{}) *GhostGraph {
	ghosts := NewGhostGraph()
	for caller, edges := range g.Invocations {
		for _, e := range edges {
			if _, ok := known[e.Callee]; ok {
				continue
			}
			pairs := make([]GhostMethodPair, 0, len(e.Calls))
			for _, c := range e.Calls {
				pairs = append(pairs, GhostMethodPair{CallerMethod: c.CallerMethod, CalleeMethod: c.CalleeMethod})
			}
			ghosts.Add(caller, e.Callee, GhostCall, pairs)
		}
	}
	for class, ifaces := range g.Interfaces {
		for _, iface := range ifaces {
			if _, ok := known[iface]; ok {
				continue
			}
			ghosts.Add(class, iface, GhostInterface, nil)
		}
	}
	for class, super := range g.Superclass {
		if _, ok := known[super]; ok {
			continue
		}
		ghosts.Add(class, super, GhostSuperclass, nil)
	}
	return ghosts
}
