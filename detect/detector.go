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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aleutian-labs/libid/graph"
	"github.com/aleutian-labs/libid/lshindex"
	"github.com/aleutian-labs/libid/matcher"
	"github.com/aleutian-labs/libid/profile"
)

const (
	// shrinkThreshold is the default minimum shrink coverage a candidate
	// library must clear before the structural matcher is even invoked,
	// and the acceptance floor applied again to shrink_after.
	shrinkThreshold = 0.1

	// probabilityThreshold is the default minimum match fraction a
	// candidate library must strictly exceed to be accepted.
	probabilityThreshold = 0.8

	// versionTieBreakEpsilon is the tolerance within which two versions
	// of the same library, matching the same package at nearly equal
	// probability, are both reported instead of one being dropped.
	versionTieBreakEpsilon = 1e-4
)

// Detector drives C4/C5: build the LSH index once from a set of library
// profiles, then run structural matching for every candidate a given app
// class set retrieves from it.
type Detector struct {
	Index  lshindex.Index
	Solver matcher.Solver
	Logger *slog.Logger

	Mode                    matcher.Mode
	ConsiderRepackaging     bool
	GhostComponentThreshold float64
	SolverTimeBudget        time.Duration

	libraries map[string]*libraryEntry // keyed by CandidateKey.LibraryNameVersion
}

type libraryEntry struct {
	profile *profile.LibraryProfile
	view    graph.LibraryView
}

// NewDetector builds the LSH index from libs and returns a ready Detector.
// Index construction failure is fatal per the error-handling taxonomy
// (ErrIndexBuild, propagated to the caller who is expected to exit non-zero).
func NewDetector(libs []*profile.LibraryProfile, opts DetectorOptions) (*Detector, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries := make(map[string]*libraryEntry, len(libs))
	var classEntries []lshindex.ClassEntry
	for _, lp := range libs {
		nameVersion := lp.Name + "_" + lp.Version
		known := make(map[string]struct{}, len(lp.ClassesSignatures))
		classes := make(map[string]graph.ClassRecord, len(lp.ClassesSignatures))
		for className, sigList := range lp.ClassesSignatures {
			known[className] = struct{}{}
			sigSet := make(map[string]struct{}, len(sigList))
			for _, s := range sigList {
				sigSet[s] = struct{}{}
			}
			classes[className] = graph.ClassRecord{Name: className, Signatures: sigSet}
			classEntries = append(classEntries, lshindex.ClassEntry{
				Key: lshindex.CandidateKey{
					LibraryNameVersion:  nameVersion,
					RootPackage:         lp.RootPackage,
					ClassCount:          lp.ClassesNum,
					TotalSignatureCount: lp.TotalSignatureCount(),
					Category:            lp.Category,
					ClassName:           className,
				},
				Signature: sigSet,
			})
		}
		classGraph := lp.ClassTables.ToClassGraph()
		entries[nameVersion] = &libraryEntry{
			profile: lp,
			view: graph.LibraryView{
				Name:                lp.Name,
				Version:             lp.Version,
				Category:            lp.Category,
				RootPackage:         lp.RootPackage,
				ClassCount:          lp.ClassesNum,
				TotalSignatureCount: lp.TotalSignatureCount(),
				Classes:             classes,
				Graph:               classGraph,
				Ghosts:              graph.DeriveGhostGraph(classGraph, known),
			},
		}
	}

	ensembleOpts := lshindex.DefaultEnsembleOptions()
	if opts.ConsiderRepackaging {
		ensembleOpts.WeightPair = lshindex.RepackagedWeightPair
	}
	index := opts.Index
	if index == nil {
		ensemble := lshindex.NewEnsemble(ensembleOpts)
		if err := ensemble.Build(classEntries); err != nil {
			return nil, fmt.Errorf("%w: %v", lshindex.ErrIndexBuild, err)
		}
		index = ensemble
	}

	solver := opts.Solver
	if solver == nil {
		solver = matcher.NewDefaultSolver()
	}

	return &Detector{
		Index:                   index,
		Solver:                  solver,
		Logger:                  logger,
		Mode:                    opts.Mode,
		ConsiderRepackaging:     opts.ConsiderRepackaging,
		GhostComponentThreshold: opts.GhostComponentThreshold,
		SolverTimeBudget:        opts.SolverTimeBudget,
		libraries:               entries,
	}, nil
}

// DetectorOptions configures NewDetector and the per-candidate matcher run.
type DetectorOptions struct {
	Index                   lshindex.Index // nil builds the default local Ensemble
	Solver                  matcher.Solver // nil uses matcher.NewDefaultSolver()
	Logger                  *slog.Logger
	Mode                    matcher.Mode
	ConsiderRepackaging     bool
	GhostComponentThreshold float64
	SolverTimeBudget        time.Duration
}

// Detect runs the whole per-app pipeline: query the index once per app
// class, group retrieved candidates by library, run structural matching
// per library, apply the acceptance rule, and merge version-ambiguous
// hits into the final Result.
func (d *Detector) Detect(ctx context.Context, app *profile.AppProfile) (Result, error) {
	start := time.Now()

	appClasses := make(map[string]graph.ClassRecord, len(app.ClassesSignatures))
	for className, sigList := range app.ClassesSignatures {
		sigSet := make(map[string]struct{}, len(sigList))
		for _, s := range sigList {
			sigSet[s] = struct{}{}
		}
		appClasses[className] = graph.ClassRecord{Name: className, Signatures: sigSet}
	}
	appKnown := make(map[string]struct{}, len(appClasses))
	for name := range appClasses {
		appKnown[name] = struct{}{}
	}
	appGraph := app.ClassTables.ToClassGraph()
	appGhosts := graph.DeriveGhostGraph(appGraph, appKnown)

	candidateAppClasses := make(map[string]map[string]struct{}) // libNameVersion -> app class names
	for className, rec := range appClasses {
		if len(rec.Signatures) == 0 {
			continue
		}
		keys, err := d.Index.Query(ctx, rec.Signatures)
		if err != nil {
			if errors.Is(err, lshindex.ErrNotReady) {
				return Result{}, fmt.Errorf("%w: %v", lshindex.ErrIndexBuild, err)
			}
			d.Logger.Debug("query failed for app class", "class", className, "error", err)
			continue
		}
		for _, k := range keys {
			set, ok := candidateAppClasses[k.LibraryNameVersion]
			if !ok {
				set = make(map[string]struct{})
				candidateAppClasses[k.LibraryNameVersion] = set
			}
			set[className] = struct{}{}
		}
	}

	var hits []candidateHit
	for nameVersion, classNames := range candidateAppClasses {
		lib, ok := d.libraries[nameVersion]
		if !ok {
			continue
		}
		hit, accepted := d.matchOneLibrary(ctx, lib, classNames, appClasses, appGraph, appGhosts)
		if accepted {
			hits = append(hits, hit)
		}
	}
	hits = applyTieBreaks(hits)

	return Result{
		Filename:    app.Filename,
		AppID:       app.AppID,
		Permissions: app.Permissions,
		Libraries:   mergeVersionAmbiguous(hits),
		Time:        time.Since(start).Seconds(),
	}, nil
}

func (d *Detector) matchOneLibrary(
	ctx context.Context,
	lib *libraryEntry,
	candidateClassNames map[string]struct{},
	allAppClasses map[string]graph.ClassRecord,
	appGraph *graph.ClassGraph,
	appGhosts *graph.GhostGraph,
) (candidateHit, bool) {
	total := lib.view.TotalSignatureCount
	if total == 0 {
		return candidateHit{}, false
	}

	union := make(map[string]struct{})
	subset := make(map[string]graph.ClassRecord, len(candidateClassNames))
	for name := range candidateClassNames {
		rec := allAppClasses[name]
		subset[name] = rec
		for s := range rec.Signatures {
			union[s] = struct{}{}
		}
	}
	shrinkBefore := float64(len(union)) / float64(total)
	if shrinkBefore < shrinkThreshold {
		return candidateHit{}, false
	}

	appView := graph.AppView{Classes: subset, Graph: appGraph, Ghosts: appGhosts}
	opts := matcher.Options{
		Mode:                    d.Mode,
		ConsiderRepackaging:     d.ConsiderRepackaging,
		GhostComponentThreshold: d.GhostComponentThreshold,
		SolverTimeBudget:        d.SolverTimeBudget,
	}

	sol, err := matcher.Match(ctx, d.Solver, lib.view, appView, opts)
	if err != nil {
		d.Logger.Debug("candidate rejected", "library", lib.profile.Name, "version", lib.profile.Version, "error", err)
		return candidateHit{}, false
	}

	matchedSigUnion := make(map[string]struct{})
	matchedAppPackages := make(map[string]struct{})
	for _, p := range sol.Matched {
		for s := range allAppClasses[p.App].Signatures {
			matchedSigUnion[s] = struct{}{}
		}
		matchedAppPackages[graph.ClassPackage(p.App)] = struct{}{}
	}
	shrinkAfter := float64(len(matchedSigUnion)) / float64(total)

	packageClasses := appClassesInPackages(allAppClasses, matchedAppPackages)
	denom := len(packageClasses)
	if lib.view.ClassCount < denom {
		denom = lib.view.ClassCount
	}
	probability := 0.0
	if denom > 0 {
		probability = float64(len(sol.Matched)) / float64(denom)
	}

	if shrinkAfter < shrinkThreshold || probability <= probabilityThreshold {
		return candidateHit{}, false
	}

	packages := make([]string, 0, len(matchedAppPackages))
	rootExist := false
	for pkg := range matchedAppPackages {
		packages = append(packages, pkg)
		if pkg == lib.view.RootPackage || strings.HasPrefix(pkg, lib.view.RootPackage+"/") {
			rootExist = true
		}
	}
	sort.Strings(packages)

	return candidateHit{
		name:               lib.profile.Name,
		version:            lib.profile.Version,
		category:           lib.profile.Category,
		rootPackageExist:   rootExist,
		similarity:         probability,
		matchedRootPackage: packages,
		shrinkPercentage:   shrinkAfter,
	}, true
}

// appClassesInPackages returns every app class (with at least one
// signature) that belongs to one of packages, per graph.ClassPackage. This
// is the probability denominator's candidate pool: every app class that
// could plausibly have matched the library given where matches actually
// landed, not the LSH retrieval candidate set, which can be much larger or
// smaller than the classes sharing a package with a real match.
func appClassesInPackages(allAppClasses map[string]graph.ClassRecord, packages map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for name, rec := range allAppClasses {
		if len(rec.Signatures) == 0 {
			continue
		}
		if _, ok := packages[graph.ClassPackage(name)]; ok {
			out[name] = struct{}{}
		}
	}
	return out
}

// applyTieBreaks implements the version tie-break rule: among hits
// sharing a name and the same matched-package set, drop any hit whose
// similarity is strictly exceeded (beyond versionTieBreakEpsilon) by
// another hit for the same package, mergeVersionAmbiguous handles the
// "equal within epsilon" case by keeping both under one entry.
func applyTieBreaks(hits []candidateHit) []candidateHit {
	type key struct{ name, pkg string }
	best := make(map[key]float64)
	for _, h := range hits {
		k := key{h.name, rootPackageSetKey(h.matchedRootPackage)}
		if h.similarity > best[k] {
			best[k] = h.similarity
		}
	}
	kept := hits[:0]
	for _, h := range hits {
		k := key{h.name, rootPackageSetKey(h.matchedRootPackage)}
		if best[k]-h.similarity > versionTieBreakEpsilon {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}
