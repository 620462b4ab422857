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

import (
	"context"
	"testing"

	"github.com/aleutian-labs/libid/fingerprint"
	"github.com/aleutian-labs/libid/matcher"
	"github.com/aleutian-labs/libid/profile"
)

func buildLibAndAppTables(t *testing.T, sdk fingerprint.SDKSet, className string) profile.ClassTables {
	t.Helper()
	class := twoBlockClass(className)
	sigs, rel, err := fingerprint.ClassSignature(sdk, class)
	if err != nil {
		t.Fatalf("ClassSignature: %v", err)
	}
	tables := profile.NewClassTables()
	tables.AddClass(className, sigs, rel)
	return tables
}

// TestDetector_ExactMatchAppIsAccepted exercises scenario 1 of the
// end-to-end properties: an app that embeds a library verbatim should be
// reported with very high similarity and shrink coverage.
func TestDetector_ExactMatchAppIsAccepted(t *testing.T) {
	sdk := fakeSDK{"Ljava/lang/Object;": true}
	className := "Lcom/squareup/okhttp/La;"
	libTables := buildLibAndAppTables(t, sdk, className)
	appTables := buildLibAndAppTables(t, sdk, className)

	lib := &profile.LibraryProfile{
		Name: "okhttp", Version: "1.0", Category: "network",
		RootPackage: "com/squareup/okhttp", ClassesNum: 1, ClassTables: libTables,
	}
	app := &profile.AppProfile{
		Filename: "app.apk", AppID: "com.example.app", ClassTables: appTables,
	}

	d, err := NewDetector([]*profile.LibraryProfile{lib}, DetectorOptions{Mode: matcher.Accurate})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	result, err := d.Detect(context.Background(), app)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Libraries) != 1 {
		t.Fatalf("expected exactly one matched library, got %+v", result.Libraries)
	}
	got := result.Libraries[0]
	if got.Name != "okhttp" {
		t.Fatalf("expected okhttp matched, got %q", got.Name)
	}
	if got.Similarity < 0.99 {
		t.Fatalf("expected similarity >= 0.99 for an exact match, got %v", got.Similarity)
	}
	if got.ShrinkPercentage < 0.99 {
		t.Fatalf("expected shrink_percentage >= 0.99 for an exact match, got %v", got.ShrinkPercentage)
	}
	if !got.RootPackageExist {
		t.Fatalf("expected root_package_exist=true when the matched class sits under the library's root package")
	}
}

// TestDetector_UnrelatedAppYieldsNoMatches exercises the negative case:
// an app with no signature overlap against the library corpus should
// never query its way into a false positive.
func TestDetector_UnrelatedAppYieldsNoMatches(t *testing.T) {
	sdk := fakeSDK{"Ljava/lang/Object;": true}
	libTables := buildLibAndAppTables(t, sdk, "Lcom/squareup/okhttp/La;")

	lib := &profile.LibraryProfile{
		Name: "okhttp", Version: "1.0", Category: "network",
		RootPackage: "com/squareup/okhttp", ClassesNum: 1, ClassTables: libTables,
	}

	unrelated := bytecodeClassWithDistinctBlocks("Lcom/other/Zz;")
	unrelatedSigs, unrelatedRel, err := fingerprint.ClassSignature(sdk, unrelated)
	if err != nil {
		t.Fatalf("ClassSignature: %v", err)
	}
	appTables := profile.NewClassTables()
	appTables.AddClass("Lcom/other/Zz;", unrelatedSigs, unrelatedRel)
	app := &profile.AppProfile{Filename: "other.apk", ClassTables: appTables}

	d, err := NewDetector([]*profile.LibraryProfile{lib}, DetectorOptions{Mode: matcher.Accurate})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	result, err := d.Detect(context.Background(), app)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Libraries) != 0 {
		t.Fatalf("expected no matches for a structurally unrelated app, got %+v", result.Libraries)
	}
}
