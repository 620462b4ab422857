// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile persists and reloads per-binary profiles: each class's
// signature set plus the three relationship graphs, as a stable JSON
// format shared between a profiling run and a later detection run.
package profile

import (
	"errors"
	"sort"

	"github.com/aleutian-labs/libid/fingerprint"
	"github.com/aleutian-labs/libid/graph"
)

// ErrNotFound is returned when a profile file does not exist at the given path.
var ErrNotFound = errors.New("profile: not found")

// ErrMalformedProfile is returned when a profile file exists but cannot be
// decoded into the expected shape.
var ErrMalformedProfile = errors.New("profile: malformed")

// ClassTables is the inner shape shared by library and app profiles:
// per-class signatures, outbound xref counts, interfaces, and superclass.
type ClassTables struct {
	ClassesSignatures map[string][]string       `json:"classes_signatures"`
	ClassesXrefTos    map[string]map[string]int `json:"classes_xref_tos"`
	ClassesInterfaces map[string][]string       `json:"classes_interfaces"`
	ClassesSuperclass map[string]string         `json:"classes_superclass"`
}

// LibraryProfile is the on-disk shape for a library binary's profile.
type LibraryProfile struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Category    string `json:"category"`
	RootPackage string `json:"root_package"`
	ClassesNum  int    `json:"classes_num"`
	ClassTables
}

// AppProfile is the on-disk shape for an app binary's profile.
type AppProfile struct {
	Filename    string   `json:"filename"`
	AppID       string   `json:"appID"`
	Permissions []string `json:"permissions"`
	ClassTables
}

// TotalSignatureCount sums the per-class signature counts, used as the
// denominator for shrink-coverage computation.
func (lp *LibraryProfile) TotalSignatureCount() int {
	n := 0
	for _, sigs := range lp.ClassesSignatures {
		n += len(sigs)
	}
	return n
}

// NewClassTables returns an empty, ready-to-populate ClassTables.
func NewClassTables() ClassTables {
	return ClassTables{
		ClassesSignatures: make(map[string][]string),
		ClassesXrefTos:    make(map[string]map[string]int),
		ClassesInterfaces: make(map[string][]string),
		ClassesSuperclass: make(map[string]string),
	}
}

// AddClass folds one class's fingerprint output into the tables, building
// the "caller_m->callee_class->callee_m" xref key format fixed by the
// external profile schema.
func (t *ClassTables) AddClass(className string, sigs map[string]struct{}, rel fingerprint.ClassRelations) {
	sorted := make([]string, 0, len(sigs))
	for s := range sigs {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)
	t.ClassesSignatures[className] = sorted

	if len(rel.Invocations) > 0 {
		xrefs := make(map[string]int)
		for _, inv := range rel.Invocations {
			key := inv.CallerMethod + "->" + inv.CalleeClass + "->" + inv.CalleeMethod
			xrefs[key]++
		}
		t.ClassesXrefTos[className] = xrefs
	}
	if len(rel.Interface) > 0 {
		ifaces := append([]string{}, rel.Interface...)
		sort.Strings(ifaces)
		t.ClassesInterfaces[className] = ifaces
	}
	if rel.Superclass != "" {
		t.ClassesSuperclass[className] = rel.Superclass
	}
}

// ToClassGraph rebuilds a graph.ClassGraph from the stored tables, the
// inverse of AddClass's xref-key encoding, used when loading a profile
// back for structural matching.
func (t *ClassTables) ToClassGraph() *graph.ClassGraph {
	g := graph.NewClassGraph()
	for class, xrefs := range t.ClassesXrefTos {
		for key, count := range xrefs {
			caller, calleeClass, calleeMethod, ok := splitXrefKey(key)
			if !ok {
				continue
			}
			for i := 0; i < count; i++ {
				g.AddInvocation(class, calleeClass, caller, calleeMethod)
			}
		}
	}
	for class, ifaces := range t.ClassesInterfaces {
		for _, iface := range ifaces {
			g.AddInterface(class, iface)
		}
	}
	for class, super := range t.ClassesSuperclass {
		g.SetSuperclass(class, super)
	}
	return g
}

// splitXrefKey inverts the "caller->calleeClass->calleeMethod" encoding.
// Class and method names never contain the "->" delimiter (they are JVM
// descriptor strings drawn from '/','.', letters, digits, ';','[').
func splitXrefKey(key string) (caller, calleeClass, calleeMethod string, ok bool) {
	const sep = "->"
	first := indexOf(key, sep, 0)
	if first < 0 {
		return "", "", "", false
	}
	second := indexOf(key, sep, first+len(sep))
	if second < 0 {
		return "", "", "", false
	}
	return key[:first], key[first+len(sep) : second], key[second+len(sep):], true
}

func indexOf(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := indexOfPlain(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return idx + from
}

func indexOfPlain(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
