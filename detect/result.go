// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect is the orchestrator: it drives profiling (C1-C3) and
// detection (C4-C5) end to end over whole directories of binaries, and
// owns the exact Result JSON shape consumed by downstream tooling.
package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/semver"
)

// ErrResultWrite is returned when a Result cannot be persisted; per-app,
// logged at the call site, other apps continue.
var ErrResultWrite = errors.New("detect: result write failed")

// WriteResult persists r as "<dir>/<basename(app.filename)>.json", matching
// the naming convention profile.FileStore uses for app profiles. If
// overwrite is false and the destination already exists, the write is
// skipped and WriteResult returns nil without touching the file.
func WriteResult(dir string, r Result, overwrite bool) error {
	base := filepath.Base(r.Filename)
	ext := filepath.Ext(base)
	base = base[:len(base)-len(ext)] + ".json"
	path := filepath.Join(dir, base)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrResultWrite, dir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrResultWrite, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrResultWrite, path, err)
	}
	return nil
}

// MatchedLibrary is one accepted library entry in a Result.
type MatchedLibrary struct {
	Name               string   `json:"name"`
	Version            []string `json:"version"`
	Category           string   `json:"category"`
	RootPackageExist   bool     `json:"root_package_exist"`
	Similarity         float64  `json:"similarity"`
	MatchedRootPackage []string `json:"matched_root_package"`
	ShrinkPercentage   float64  `json:"shrink_percentage"`
}

// Result is the exact on-disk shape of one app's detection run.
type Result struct {
	Filename    string           `json:"filename"`
	AppID       string           `json:"appID"`
	Permissions []string         `json:"permissions"`
	Libraries   []MatchedLibrary `json:"libraries"`
	Time        float64          `json:"time"`
}

// mergeVersionAmbiguous groups candidate hits that share a name and
// matched_root_package set into one entry with a semver-sorted version
// list, mirroring the original's _get_libs_matches_detail_info behavior
// for scenario 6 (version ambiguity): two versions of the same library
// both clearing the acceptance bar, differing only in classes the app
// never exercises, get reported once with both versions listed.
func mergeVersionAmbiguous(hits []candidateHit) []MatchedLibrary {
	type group struct {
		name       string
		category   string
		versions   map[string]bool
		rootExist  bool
		bestSim    float64
		bestShrink float64
		packages   map[string]bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, h := range hits {
		key := h.name + "|" + rootPackageSetKey(h.matchedRootPackage)
		g, ok := groups[key]
		if !ok {
			g = &group{
				name:      h.name,
				category:  h.category,
				versions:  make(map[string]bool),
				packages:  make(map[string]bool),
				rootExist: h.rootPackageExist,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.versions[h.version] = true
		for _, p := range h.matchedRootPackage {
			g.packages[p] = true
		}
		if h.similarity > g.bestSim {
			g.bestSim = h.similarity
		}
		if h.shrinkPercentage > g.bestShrink {
			g.bestShrink = h.shrinkPercentage
		}
		if h.rootPackageExist {
			g.rootExist = true
		}
	}

	out := make([]MatchedLibrary, 0, len(order))
	for _, key := range order {
		g := groups[key]
		versions := make([]string, 0, len(g.versions))
		for v := range g.versions {
			versions = append(versions, v)
		}
		sortVersions(versions)
		packages := make([]string, 0, len(g.packages))
		for p := range g.packages {
			packages = append(packages, p)
		}
		sort.Strings(packages)
		out = append(out, MatchedLibrary{
			Name:               g.name,
			Version:            versions,
			Category:           g.category,
			RootPackageExist:   g.rootExist,
			Similarity:         g.bestSim,
			MatchedRootPackage: packages,
			ShrinkPercentage:   g.bestShrink,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// candidateHit is one accepted (library, version) candidate before
// version-ambiguity grouping collapses siblings together.
type candidateHit struct {
	name               string
	version            string
	category           string
	rootPackageExist   bool
	similarity         float64
	matchedRootPackage []string
	shrinkPercentage   float64
}

func rootPackageSetKey(pkgs []string) string {
	sorted := append([]string{}, pkgs...)
	sort.Strings(sorted)
	key := ""
	for _, p := range sorted {
		key += p + ","
	}
	return key
}

// sortVersions orders version strings with semver awareness when they
// parse as valid semver (prefixed with "v" for golang.org/x/mod/semver's
// benefit); non-semver version strings fall back to lexicographic order
// among themselves, sorted after any well-formed semver versions.
func sortVersions(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		vi, vj := "v"+versions[i], "v"+versions[j]
		iValid, jValid := semver.IsValid(vi), semver.IsValid(vj)
		switch {
		case iValid && jValid:
			return semver.Compare(vi, vj) < 0
		case iValid != jValid:
			return iValid
		default:
			return versions[i] < versions[j]
		}
	})
}
