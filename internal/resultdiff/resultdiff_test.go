// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resultdiff

import (
	"strings"
	"testing"

	"github.com/aleutian-labs/libid/detect"
)

func TestDiff_NoChangesProducesEmptyText(t *testing.T) {
	result := detect.Result{Libraries: []detect.MatchedLibrary{
		{Name: "okhttp", Version: []string{"1.0"}, Similarity: 0.9, ShrinkPercentage: 0.9},
	}}
	text, fileDiff, err := Diff("a.json", result, "b.json", result)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty diff text for identical results, got %q", text)
	}
	if stat := CountChanges(fileDiff); stat.Added != 0 || stat.Removed != 0 {
		t.Fatalf("expected zero changes, got %+v", stat)
	}
}

func TestDiff_AddedLibraryShowsAsAddition(t *testing.T) {
	before := detect.Result{Libraries: []detect.MatchedLibrary{
		{Name: "okhttp", Version: []string{"1.0"}, Similarity: 0.9, ShrinkPercentage: 0.9},
	}}
	after := detect.Result{Libraries: []detect.MatchedLibrary{
		{Name: "okhttp", Version: []string{"1.0"}, Similarity: 0.9, ShrinkPercentage: 0.9},
		{Name: "gson", Version: []string{"2.8"}, Similarity: 0.95, ShrinkPercentage: 0.95},
	}}
	text, fileDiff, err := Diff("before.json", before, "after.json", after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(text, "gson") {
		t.Fatalf("expected diff text to mention the added library, got %q", text)
	}
	stat := CountChanges(fileDiff)
	if stat.Added != 1 || stat.Removed != 0 {
		t.Fatalf("expected one added line and zero removed, got %+v", stat)
	}
}

func TestDiff_RemovedLibraryShowsAsRemoval(t *testing.T) {
	before := detect.Result{Libraries: []detect.MatchedLibrary{
		{Name: "okhttp", Version: []string{"1.0"}, Similarity: 0.9, ShrinkPercentage: 0.9},
		{Name: "gson", Version: []string{"2.8"}, Similarity: 0.95, ShrinkPercentage: 0.95},
	}}
	after := detect.Result{Libraries: []detect.MatchedLibrary{
		{Name: "okhttp", Version: []string{"1.0"}, Similarity: 0.9, ShrinkPercentage: 0.9},
	}}
	_, fileDiff, err := Diff("before.json", before, "after.json", after)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	stat := CountChanges(fileDiff)
	if stat.Removed != 1 || stat.Added != 0 {
		t.Fatalf("expected one removed line and zero added, got %+v", stat)
	}
}
