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
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/fingerprint"
	"github.com/aleutian-labs/libid/profile"
)

// LibraryMeta carries the metadata a library profile needs beyond what a
// bytecode.Parser yields per class, the CLI/caller supplies it per input
// binary since no universal convention exists for deriving name/version/
// category/root_package from a filename alone.
type LibraryMeta struct {
	Name        string
	Version     string
	Category    string
	RootPackage string
}

// Profiler drives C1-C3: parse a binary's classes, fingerprint each one,
// fold the results into profile tables, and persist the result.
type Profiler struct {
	SDK    fingerprint.SDKSet
	Parser bytecode.Parser
	Store  profile.Store
	Logger *slog.Logger
}

// NewProfiler returns a Profiler that logs to slog.Default() if logger is nil.
func NewProfiler(sdk fingerprint.SDKSet, parser bytecode.Parser, store profile.Store, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{SDK: sdk, Parser: parser, Store: store, Logger: logger}
}

// ProfileLibrary parses path, fingerprints every class, and saves a
// LibraryProfile built from meta plus the derived class tables.
func (p *Profiler) ProfileLibrary(ctx context.Context, path string, meta LibraryMeta) (*profile.LibraryProfile, error) {
	classes, _, err := p.Parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("detect: parsing library %s: %w", path, err)
	}

	tables := profile.NewClassTables()
	classCount := 0
	for _, class := range classes {
		sigs, rel, err := fingerprint.ClassSignature(p.SDK, class)
		if err != nil {
			p.Logger.Warn("skipping malformed class", "binary", path, "class", class.Name, "error", err)
			continue
		}
		tables.AddClass(class.Name, sigs, rel)
		classCount++
	}

	lp := &profile.LibraryProfile{
		Name:        meta.Name,
		Version:     meta.Version,
		Category:    meta.Category,
		RootPackage: meta.RootPackage,
		ClassesNum:  classCount,
		ClassTables: tables,
	}
	if err := p.Store.SaveLibrary(ctx, lp); err != nil {
		return nil, fmt.Errorf("detect: saving library profile for %s: %w", path, err)
	}
	return lp, nil
}

// ProfileApp parses path, fingerprints every class, and saves an
// AppProfile carrying the parser-reported metadata verbatim.
func (p *Profiler) ProfileApp(ctx context.Context, path string) (*profile.AppProfile, error) {
	classes, appMeta, err := p.Parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("detect: parsing app %s: %w", path, err)
	}

	tables := profile.NewClassTables()
	for _, class := range classes {
		sigs, rel, err := fingerprint.ClassSignature(p.SDK, class)
		if err != nil {
			p.Logger.Warn("skipping malformed class", "binary", path, "class", class.Name, "error", err)
			continue
		}
		tables.AddClass(class.Name, sigs, rel)
	}

	filename := appMeta.Filename
	if filename == "" {
		filename = filepath.Base(path)
	}
	ap := &profile.AppProfile{
		Filename:    filename,
		AppID:       appMeta.AppID,
		Permissions: appMeta.Permissions,
		ClassTables: tables,
	}
	if err := p.Store.SaveApp(ctx, ap); err != nil {
		return nil, fmt.Errorf("detect: saving app profile for %s: %w", path, err)
	}
	return ap, nil
}
