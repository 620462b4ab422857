// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aleutian-labs/libid/bytecode"
)

// binaryExt groups every extension the profile/detect pipeline recognizes.
var binaryExt = []string{".apk", ".dex", ".jar"}

// discoveryParsers returns the parser chain used to read real binaries: a
// FixtureParser for the ".json" scenario fixtures used in tests and demos,
// plus an ExternalToolParser shelling out to an external dex/apk extractor
// for the real container formats. toolCmd is the extractor command name;
// an empty value selects "libid-bytecode-extract".
func discoveryParsers(toolCmd string) []bytecode.Parser {
	if toolCmd == "" {
		toolCmd = "libid-bytecode-extract"
	}
	return []bytecode.Parser{
		bytecode.FixtureParser{},
		bytecode.ExternalToolParser{Command: toolCmd, SupportedExt: binaryExt},
	}
}

// isAppBinary mirrors the original tool's convention: .apk containers are
// applications, .dex/.jar containers are libraries. Pre-built ".json"
// profiles/fixtures are inspected by the caller instead (their shape
// already distinguishes app from library).
func isAppBinary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".apk")
}

// libraryMetaFromPath derives a LibraryMeta the way the original tool did:
// the binary is expected to be named "<name>_<version><ext>" and to live
// in a directory named after its category (e.g. "advertisement/admob_7.2.0.dex").
// root_package is filled in separately once the binary's classes are known.
func libraryMetaFromPath(path string) (name, version, category string) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.SplitN(base, "_", 2)
	name = parts[0]
	if len(parts) > 1 {
		version = parts[1]
	}
	category = filepath.Base(filepath.Dir(path))
	return name, version, category
}

// rootPackageFromClassNames derives root_package as the longest common
// package prefix of every class name, matching the original analyzer's
// commonprefix-of-packages convention (class names are descriptor-form,
// e.g. "Lcom/example/foo/Bar;").
func rootPackageFromClassNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	var packages [][]string
	for _, n := range names {
		trimmed := strings.TrimPrefix(strings.TrimSuffix(n, ";"), "L")
		segments := strings.Split(trimmed, "/")
		if len(segments) > 1 {
			packages = append(packages, segments[:len(segments)-1])
		} else {
			packages = append(packages, nil)
		}
	}
	sort.Slice(packages, func(i, j int) bool { return len(packages[i]) < len(packages[j]) })

	common := packages[0]
	for _, pkg := range packages[1:] {
		common = commonPrefix(common, pkg)
		if len(common) == 0 {
			break
		}
	}
	return strings.Join(common, "/")
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// discoverBinaries expands files/dir into a sorted list of binary paths.
// Exactly one of files/dir must be non-empty; this is an argument error
// (non-zero exit) per the CLI's error contract.
func discoverBinaries(files []string, dir string) ([]string, error) {
	if len(files) > 0 && dir != "" {
		return nil, fmt.Errorf("specify either -f/--files or -d/--dir, not both")
	}
	if len(files) == 0 && dir == "" {
		return nil, fmt.Errorf("one of -f/--files or -d/--dir is required")
	}
	if dir == "" {
		out := append([]string{}, files...)
		sort.Strings(out)
		return out, nil
	}

	var out []string
	for _, ext := range binaryExt {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", dir, err)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

// discoverProfiles expands files/dir into a sorted list of profile JSON
// paths, for the detect subcommand's -af/-ad/-lf/-ld flag pairs.
func discoverProfiles(files []string, dir string) ([]string, error) {
	if len(files) > 0 && dir != "" {
		return nil, fmt.Errorf("specify a file list or a directory, not both")
	}
	if len(files) == 0 && dir == "" {
		return nil, fmt.Errorf("a file list or a directory is required")
	}
	if dir == "" {
		out := append([]string{}, files...)
		sort.Strings(out)
		return out, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
