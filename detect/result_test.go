// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import "testing"

func TestMergeVersionAmbiguous_SameNameAndPackagesGroup(t *testing.T) {
	hits := []candidateHit{
		{name: "okhttp", version: "0.9", category: "network", similarity: 0.85, matchedRootPackage: []string{"com/squareup/okhttp"}, shrinkPercentage: 0.95},
		{name: "okhttp", version: "1.0", category: "network", similarity: 0.99, matchedRootPackage: []string{"com/squareup/okhttp"}, shrinkPercentage: 0.99},
	}
	merged := mergeVersionAmbiguous(hits)
	if len(merged) != 1 {
		t.Fatalf("expected one merged entry, got %d: %+v", len(merged), merged)
	}
	if len(merged[0].Version) != 2 {
		t.Fatalf("expected both versions reported, got %+v", merged[0].Version)
	}
	if merged[0].Version[0] != "0.9" || merged[0].Version[1] != "1.0" {
		t.Fatalf("expected semver-ascending order, got %+v", merged[0].Version)
	}
}

func TestMergeVersionAmbiguous_DisjointPackagesStaySeparate(t *testing.T) {
	hits := []candidateHit{
		{name: "libA", version: "1.0", matchedRootPackage: []string{"com/a"}, similarity: 0.9, shrinkPercentage: 0.9},
		{name: "libB", version: "1.0", matchedRootPackage: []string{"com/b"}, similarity: 0.9, shrinkPercentage: 0.9},
	}
	merged := mergeVersionAmbiguous(hits)
	if len(merged) != 2 {
		t.Fatalf("expected two distinct entries, got %d: %+v", len(merged), merged)
	}
}

func TestSortVersions_SemverAwareOrdering(t *testing.T) {
	versions := []string{"1.10.0", "1.2.0", "1.9.0"}
	sortVersions(versions)
	want := []string{"1.2.0", "1.9.0", "1.10.0"}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("lexicographic sort leaked through: got %+v, want %+v", versions, want)
		}
	}
}
