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

func sigs(vals ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func TestBuildModel_CandidatePairsRequireOverlap(t *testing.T) {
	lib := graph.LibraryView{
		ClassCount: 2,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1", "h2")},
			"Lb": {Name: "Lb", Signatures: sigs("h3")},
		},
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1", "h9")},
			"Ab": {Name: "Ab", Signatures: sigs("h4")},
		},
	}

	m := BuildModel(lib, app, Options{Mode: Scalable})
	if len(m.Pairs) != 1 {
		t.Fatalf("expected 1 candidate pair, got %d: %+v", len(m.Pairs), m.Pairs)
	}
	if m.Pairs[0].Lib != "La" || m.Pairs[0].App != "Aa" {
		t.Fatalf("unexpected pair: %+v", m.Pairs[0])
	}
}

func TestBuildModel_WeightFormula(t *testing.T) {
	lib := graph.LibraryView{
		ClassCount: 4,
		Classes: map[string]graph.ClassRecord{
			"La": {Name: "La", Signatures: sigs("h1")},
		},
	}
	app := graph.AppView{
		Classes: map[string]graph.ClassRecord{
			"Aa": {Name: "Aa", Signatures: sigs("h1", "h2", "h3")},
		},
	}
	m := BuildModel(lib, app, Options{Mode: Scalable})
	want := 1.0/4.0 + 1e-4*3
	got := m.weight["Aa"]
	if got != want {
		t.Fatalf("weight = %v, want %v", got, want)
	}
}

func TestBuildModel_AccurateModeRunsGhostContraction(t *testing.T) {
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
	m := BuildModel(lib, app, Options{Mode: Accurate})
	if len(m.Pairs) != 1 {
		t.Fatalf("expected the single candidate pair to survive an empty ghost graph, got %d", len(m.Pairs))
	}
}
