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

	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/profile"
)

type fakeSDK map[string]bool

func (s fakeSDK) Contains(className string) bool { return s[className] }

type fakeParser struct {
	classes []bytecode.Class
	meta    bytecode.AppMeta
}

func (p fakeParser) Parse(_ context.Context, _ string) ([]bytecode.Class, bytecode.AppMeta, error) {
	return p.classes, p.meta, nil
}

func (p fakeParser) Ext() []string { return []string{".fake"} }

func twoBlockClass(name string) bytecode.Class {
	return bytecode.Class{
		Name:        name,
		AccessFlags: "public",
		Super:       "Ljava/lang/Object;",
		Methods: []bytecode.Method{
			{
				Name:       "run",
				Descriptor: "()V",
				Blocks: [][]byte{
					{0x01, 0x02, 0x03, 0x04},
					{0x05, 0x06, 0x07, 0x08},
				},
			},
		},
	}
}

func bytecodeClassWithDistinctBlocks(name string) bytecode.Class {
	return bytecode.Class{
		Name:        name,
		AccessFlags: "public",
		Super:       "Ljava/lang/Object;",
		Methods: []bytecode.Method{
			{
				Name:       "unrelated",
				Descriptor: "()V",
				Blocks: [][]byte{
					{0xaa, 0xbb, 0xcc, 0xdd},
					{0xee, 0xff, 0x11, 0x22},
				},
			},
		},
	}
}

func TestProfiler_ProfileLibrary(t *testing.T) {
	sdk := fakeSDK{"Ljava/lang/Object;": true}
	parser := fakeParser{classes: []bytecode.Class{twoBlockClass("Lcom/example/La;")}}
	store := profile.NewFileStore(t.TempDir())

	p := NewProfiler(sdk, parser, store, nil)
	lp, err := p.ProfileLibrary(context.Background(), "lib.fake", LibraryMeta{Name: "example", Version: "1.0", Category: "util", RootPackage: "com/example"})
	if err != nil {
		t.Fatalf("ProfileLibrary: %v", err)
	}
	if lp.ClassesNum != 1 {
		t.Fatalf("expected 1 class profiled, got %d", lp.ClassesNum)
	}
	sigs := lp.ClassesSignatures["Lcom/example/La;"]
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures (one per 4-byte block), got %d: %v", len(sigs), sigs)
	}
}

func TestProfiler_ProfileApp(t *testing.T) {
	sdk := fakeSDK{"Ljava/lang/Object;": true}
	parser := fakeParser{
		classes: []bytecode.Class{twoBlockClass("Lcom/example/Aa;")},
		meta:    bytecode.AppMeta{Filename: "app.apk", AppID: "com.example.app", Permissions: []string{"INTERNET"}},
	}
	store := profile.NewFileStore(t.TempDir())

	p := NewProfiler(sdk, parser, store, nil)
	ap, err := p.ProfileApp(context.Background(), "app.apk")
	if err != nil {
		t.Fatalf("ProfileApp: %v", err)
	}
	if ap.AppID != "com.example.app" {
		t.Fatalf("expected AppID forwarded verbatim, got %q", ap.AppID)
	}
	if len(ap.ClassesSignatures["Lcom/example/Aa;"]) != 2 {
		t.Fatalf("expected 2 signatures for the app class")
	}
}

func TestProfiler_SkipsMalformedClassAndContinues(t *testing.T) {
	sdk := fakeSDK{}
	malformed := bytecode.Class{
		Name: "Lcom/example/Bad;",
		Methods: []bytecode.Method{
			{Descriptor: "(Lunbalanced", Blocks: [][]byte{{0, 0, 0, 0}}},
		},
	}
	parser := fakeParser{classes: []bytecode.Class{malformed, twoBlockClass("Lcom/example/Good;")}}
	store := profile.NewFileStore(t.TempDir())

	p := NewProfiler(sdk, parser, store, nil)
	lp, err := p.ProfileLibrary(context.Background(), "lib.fake", LibraryMeta{Name: "x", Version: "1"})
	if err != nil {
		t.Fatalf("ProfileLibrary: %v", err)
	}
	if lp.ClassesNum != 1 {
		t.Fatalf("expected only the well-formed class to be counted, got %d", lp.ClassesNum)
	}
	if _, ok := lp.ClassesSignatures["Lcom/example/Bad;"]; ok {
		t.Fatalf("malformed class should not appear in the profile")
	}
}
