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
	"testing"

	"github.com/aleutian-labs/libid/graph"
)

func pairIn(pairs []ClassPair, p ClassPair) bool {
	for _, q := range pairs {
		if q == p {
			return true
		}
	}
	return false
}

func TestContractGhosts_CallKindRemovesSubsetMatchOnly(t *testing.T) {
	appGraph := graph.NewClassGraph()
	appGraph.AddInvocation("Aa", "Aouter", "m()V", "n()V")

	ghosts := graph.NewGhostGraph()
	ghosts.Add("La", "Lghost", graph.GhostCall, []graph.GhostMethodPair{{CallerMethod: "m()V", CalleeMethod: "n()V"}})

	lib := graph.LibraryView{
		Classes: map[string]graph.ClassRecord{"La": {Name: "La", Signatures: sigs("h1")}},
		Ghosts:  ghosts,
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa":     {Name: "Aa", Signatures: sigs("h1")},
			"Aouter": {Name: "Aouter", Signatures: sigs("h2")},
		},
		Graph: appGraph,
	}

	pairs := []ClassPair{{Lib: "La", App: "Aa"}}
	kept := contractGhosts(lib, app, pairs, Options{})
	if !pairIn(kept, ClassPair{Lib: "La", App: "Aa"}) {
		t.Fatalf("expected La/Aa pair to survive contraction, got %+v", kept)
	}
}

func TestContractGhosts_InterfaceKindUnconditionalRemoval(t *testing.T) {
	appGraph := graph.NewClassGraph()
	appGraph.AddInterface("Aa", "Aiface")

	ghosts := graph.NewGhostGraph()
	ghosts.Add("La", "Lghost", graph.GhostInterface, nil)

	lib := graph.LibraryView{
		Classes: map[string]graph.ClassRecord{"La": {Name: "La", Signatures: sigs("h1")}},
		Ghosts:  ghosts,
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa":     {Name: "Aa", Signatures: sigs("h1")},
			"Aiface": {Name: "Aiface", Signatures: sigs("h2")},
		},
		Graph: appGraph,
	}

	adj := app.Graph.UndirectedAdjacency(map[string]struct{}{"Aa": {}, "Aiface": {}})
	if _, ok := adj["Aa"]["Aiface"]; !ok {
		t.Fatalf("precondition failed: expected Aa-Aiface edge before contraction")
	}

	pairs := []ClassPair{{Lib: "La", App: "Aa"}}
	kept := contractGhosts(lib, app, pairs, Options{})
	if !pairIn(kept, ClassPair{Lib: "La", App: "Aa"}) {
		t.Fatalf("single-node component should survive regardless of threshold, got %+v", kept)
	}
}

func TestRemoveGhostCorrespondingNeighbor_DepthMismatchBlocksRemoval(t *testing.T) {
	appGraph := graph.NewClassGraph()
	appGraph.AddInvocation("Aa/b", "Aouter/deep/x", "m()V", "n()V")
	appView := graph.AppView{Graph: appGraph}

	ghostEdge := &graph.GhostEdge{
		Src: "La/b", Dst: "Lc", Kind: graph.GhostCall,
		Method: []graph.GhostMethodPair{{CallerMethod: "m()V", CalleeMethod: "n()V"}},
	}

	nodes := map[string]struct{}{"Aa/b": {}, "Aouter/deep/x": {}}
	adj := appGraph.UndirectedAdjacency(nodes)
	if _, ok := adj["Aa/b"]["Aouter/deep/x"]; !ok {
		t.Fatalf("precondition failed: expected Aa/b-Aouter/deep/x edge before contraction")
	}

	// depth("Aouter/deep/x") - depth("Aa/b") = 2 - 1 = 1, but
	// depth("Lc") - depth("La/b") = 0 - 1 = -1: a depth mismatch, so with
	// repackaging not considered the neighbor must not be removed.
	removeGhostCorrespondingNeighbor(adj, appView, "Aa/b", "La/b", ghostEdge, Options{ConsiderRepackaging: false})
	if _, ok := adj["Aa/b"]["Aouter/deep/x"]; !ok {
		t.Fatalf("expected edge to survive a depth mismatch when ConsiderRepackaging is false")
	}

	removeGhostCorrespondingNeighbor(adj, appView, "Aa/b", "La/b", ghostEdge, Options{ConsiderRepackaging: true})
	if _, ok := adj["Aa/b"]["Aouter/deep/x"]; ok {
		t.Fatalf("expected edge to be removed once repackaging is considered, ignoring depth")
	}
}

func TestContractGhosts_ComponentBelowThresholdDropped(t *testing.T) {
	appGraph := graph.NewClassGraph()
	appGraph.AddInvocation("Aa", "Ab", "m()V", "n()V")
	appGraph.AddInvocation("Ab", "Ac", "p()V", "q()V")
	appGraph.AddInvocation("Ac", "Ad", "r()V", "s()V")

	lib := graph.LibraryView{
		Classes: map[string]graph.ClassRecord{"La": {Name: "La", Signatures: sigs("h1")}},
		Ghosts:  graph.NewGhostGraph(),
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1")},
			"Ab": {},
			"Ac": {},
			"Ad": {},
		},
		Graph: appGraph,
	}

	pairs := []ClassPair{{Lib: "La", App: "Aa"}}
	kept := contractGhosts(lib, app, pairs, Options{GhostComponentThreshold: 0.5})
	if len(kept) != 0 {
		t.Fatalf("expected component with 1/4 matched ratio under 0.5 threshold to be dropped, got %+v", kept)
	}
}
