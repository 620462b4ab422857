// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resultdiff renders a unified diff between two detection Result
// documents, so an analyst can compare two runs (different app versions,
// or the same app under ACCURATE vs SCALABLE mode) without diffing raw
// JSON by hand.
package resultdiff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleutian-labs/libid/detect"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// Diff computes a unified diff between the matched-library listings of
// oldResult and newResult. oldLabel/newLabel name the two runs (typically
// file paths) and appear in the diff's "---"/"+++" headers.
//
// Description:
//
//	Each matched library is rendered as one sorted, stable text line so
//	that go-difflib's line-based SequenceMatcher diff produces a meaningful
//	hunk per changed library rather than a single opaque JSON blob diff. The
//	resulting unified-diff text is then parsed with go-diff into a
//	structured *diff.FileDiff, which is what callers should use to walk
//	hunks programmatically (e.g. the `diff` CLI subcommand counts added/
//	removed lines by passing it to CountChanges).
//
// Outputs:
//
//	text - the unified diff as printable text.
//	fileDiff - the same diff parsed into go-diff's structured form.
//	error - non-nil if go-difflib fails to compute the diff, or if the
//	  generated diff text fails to parse, which would indicate a bug in how
//	  the lines were rendered.
func Diff(oldLabel string, oldResult detect.Result, newLabel string, newResult detect.Result) (text string, fileDiff *diff.FileDiff, err error) {
	oldLines := renderLines(oldResult)
	newLines := renderLines(newResult)

	unified := difflib.UnifiedDiff{
		A:        oldLines,
		B:        newLines,
		FromFile: oldLabel,
		ToFile:   newLabel,
		Context:  2,
	}
	text, err = difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return "", nil, fmt.Errorf("resultdiff: computing diff: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", &diff.FileDiff{OrigName: oldLabel, NewName: newLabel}, nil
	}

	fileDiff, err = diff.ParseFileDiff([]byte(text))
	if err != nil {
		return "", nil, fmt.Errorf("resultdiff: parsing generated diff: %w", err)
	}
	return text, fileDiff, nil
}

// Stat summarizes how many matched-library lines were added/removed,
// derived from the parsed FileDiff's hunks.
type Stat struct {
	Added   int
	Removed int
}

// CountChanges walks fileDiff's hunks and totals added/removed lines.
func CountChanges(fileDiff *diff.FileDiff) Stat {
	var s Stat
	for _, hunk := range fileDiff.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				s.Added++
			case strings.HasPrefix(line, "-"):
				s.Removed++
			}
		}
	}
	return s
}

func renderLines(result detect.Result) []string {
	lines := make([]string, 0, len(result.Libraries))
	for _, lib := range result.Libraries {
		versions := append([]string(nil), lib.Version...)
		sort.Strings(versions)
		packages := append([]string(nil), lib.MatchedRootPackage...)
		sort.Strings(packages)
		lines = append(lines, fmt.Sprintf(
			"%s@%s category=%s similarity=%.4f shrink=%.4f root_package_exist=%v packages=%s\n",
			lib.Name, strings.Join(versions, ","), lib.Category, lib.Similarity,
			lib.ShrinkPercentage, lib.RootPackageExist, strings.Join(packages, ","),
		))
	}
	sort.Strings(lines)
	return lines
}
