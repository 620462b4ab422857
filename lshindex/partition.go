// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lshindex

import "sort"

// NumPartitions is the number of cardinality partitions the ensemble
// splits indexed sets into.
const NumPartitions = 32

// entry is one indexed (class signature, key) pair.
type entry struct {
	key  CandidateKey
	sig  Signature
	size int
}

// partition holds every entry whose signature-set size falls within
// [lowerBound, upperBound), plus an LSH bucket index over those entries
// tuned for this partition's representative size.
type partition struct {
	lowerBound, upperBound int
	entries                []entry
	bands                  int
	rows                   int
	buckets                []map[uint64][]int // one bucket map per band, values are indices into entries
}

// partitionEntries sorts entries by signature-set size and splits them
// into up to NumPartitions contiguous groups, following the original
// scheme's "partition by indexed-set cardinality" design: equal-width
// partitions over an unknown, possibly skewed size distribution would
// waste partitions on sparse size ranges, so boundaries are instead
// chosen to hold roughly equal entry counts per partition.
func partitionEntries(entries []entry, numPartitions int) []*partition {
	if len(entries) == 0 {
		return nil
	}
	sorted := append([]entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].size < sorted[j].size })

	n := len(sorted)
	if numPartitions > n {
		numPartitions = n
	}
	if numPartitions < 1 {
		numPartitions = 1
	}

	chunk := (n + numPartitions - 1) / numPartitions
	var parts []*partition
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		group := sorted[start:end]
		p := &partition{
			lowerBound: group[0].size,
			upperBound: group[len(group)-1].size + 1,
			entries:    group,
		}
		parts = append(parts, p)
	}
	return parts
}

// representativeSize returns the size used to translate the containment
// threshold θ into an equivalent Jaccard threshold for this partition.
// Using the lower bound is the conservative choice: it never overstates
// the achievable Jaccard threshold for any member of the partition, which
// keeps recall from degrading for the partition's larger sets at the cost
// of generating some false-positive candidates for its smaller ones
// (filtered out later by the exact containment check).
func (p *partition) representativeSize() int {
	if p.lowerBound < 1 {
		return 1
	}
	return p.lowerBound
}
