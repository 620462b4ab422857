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

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrIndexBuild is returned when the ensemble's index cannot be built
// (malformed input set). Construction failure is fatal at the orchestrator
// level: without an index, detection cannot proceed.
var ErrIndexBuild = errors.New("lshindex: index construction failed")

// ErrNotReady is returned by Query if called before the index has
// finished building; index construction must strictly precede any query.
var ErrNotReady = errors.New("lshindex: index not ready")

// Index bulk-indexes many class signature sets and answers containment-style
// queries.
type Index interface {
	Query(ctx context.Context, sig map[string]struct{}) ([]CandidateKey, error)
}

// EnsembleOptions configures a local MinHash-LSH-ensemble Index.
type EnsembleOptions struct {
	// Threshold is θ, the containment threshold a hit must satisfy.
	Threshold float64

	// NumPartitions is the cardinality-partition count.
	NumPartitions int

	// WeightPair trades precision against recall per LSH band/row split:
	// (falsePositiveWeight, falseNegativeWeight). The original CLI exposes
	// this as the "repackaging" toggle: (0.5, 0.5) when the app is
	// suspected of having its packages flattened/repackaged (favor
	// recall-precision balance evenly), (0.1, 0.9) otherwise (favor
	// recall, since an unrepackaged app's library classes keep their
	// original structure and false positives are cheap to reject later
	// in structural matching).
	WeightPair [2]float64
}

// DefaultEnsembleOptions returns the options matching spec defaults:
// θ=0.8, 32 partitions, not-repackaged weight pair (0.1, 0.9).
func DefaultEnsembleOptions() EnsembleOptions {
	return EnsembleOptions{
		Threshold:     0.8,
		NumPartitions: NumPartitions,
		WeightPair:    [2]float64{0.1, 0.9},
	}
}

// RepackagedWeightPair is the weight pair used when consider-repackaging
// is enabled.
var RepackagedWeightPair = [2]float64{0.5, 0.5}

// Ensemble is a local, in-process MinHash-LSH-ensemble Index.
type Ensemble struct {
	opts       EnsembleOptions
	partitions []*partition
	ready      bool
}

// NewEnsemble returns an empty Ensemble. Call Build once with the full set
// of library class signatures before querying.
func NewEnsemble(opts EnsembleOptions) *Ensemble {
	if opts.NumPartitions <= 0 {
		opts.NumPartitions = NumPartitions
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.8
	}
	if opts.WeightPair == [2]float64{} {
		opts.WeightPair = [2]float64{0.1, 0.9}
	}
	return &Ensemble{opts: opts}
}

// ClassEntry is one library class signature set to index, keyed for
// decoding back into library metadata on a hit.
type ClassEntry struct {
	Key       CandidateKey
	Signature map[string]struct{}
}

// Build constructs the ensemble index over entries. It is single-threaded
// and must complete before any Query call; calling Build again replaces
// the index wholesale.
func (e *Ensemble) Build(entries []ClassEntry) error {
	if len(entries) == 0 {
		e.partitions = nil
		e.ready = true
		return nil
	}
	raw := make([]entry, 0, len(entries))
	for _, ce := range entries {
		if len(ce.Signature) == 0 {
			continue // classes with no emittable signatures do not participate in indexing
		}
		raw = append(raw, entry{
			key:  ce.Key,
			sig:  NewSignature(ce.Signature),
			size: len(ce.Signature),
		})
	}
	parts := partitionEntries(raw, e.opts.NumPartitions)
	for _, p := range parts {
		if err := buildPartitionBands(p, e.opts); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexBuild, err)
		}
	}
	e.partitions = parts
	e.ready = true
	return nil
}

// Query finds candidate keys whose indexed set S satisfies |S ∩ Q|/|S| ≥ θ
// against the query signature set sig, following §4.4: build a MinHash of
// Q and query with k = |sig|.
func (e *Ensemble) Query(ctx context.Context, sig map[string]struct{}) ([]CandidateKey, error) {
	if !e.ready {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sig) == 0 || len(e.partitions) == 0 {
		return nil, nil
	}
	qSig := NewSignature(sig)
	qSize := len(sig)

	seen := make(map[string]struct{})
	var out []CandidateKey
	for _, p := range e.partitions {
		candidates := p.candidateIndices(qSig)
		for _, idx := range candidates {
			ent := p.entries[idx]
			containment := EstimateContainment(ent.sig, ent.size, qSig, qSize)
			if containment < e.opts.Threshold {
				continue
			}
			k := ent.key.Encode()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, ent.key)
		}
	}
	return out, nil
}

// buildPartitionBands picks (bands, rows) for p based on the Jaccard
// threshold equivalent to θ at this partition's representative size, then
// hashes every entry's signature into per-band buckets.
func buildPartitionBands(p *partition, opts EnsembleOptions) error {
	s := p.representativeSize()
	jaccardThreshold := containmentToJaccard(opts.Threshold, s, s)
	bands, rows := optimalBandsRows(NumPermutations, jaccardThreshold, opts.WeightPair)
	p.bands, p.rows = bands, rows
	p.buckets = make([]map[uint64][]int, bands)
	for b := range p.buckets {
		p.buckets[b] = make(map[uint64][]int)
	}
	for idx, ent := range p.entries {
		for b := 0; b < bands; b++ {
			bucket := bandHash(ent.sig, b, rows)
			p.buckets[b][bucket] = append(p.buckets[b][bucket], idx)
		}
	}
	return nil
}

// exactScanThreshold bounds how large a partition can be before banding
// becomes necessary for candidate generation to stay sub-linear. Below
// this size, an exhaustive scan is cheaper than banding overhead and
// immune to the banding scheme's probabilistic miss rate, the common
// case for most real library-profile corpora sized in the thousands, not
// millions, of classes.
const exactScanThreshold = 2000

// candidateIndices collects every entry index sharing at least one band
// bucket with qSig, the standard LSH candidate-generation step. Small
// partitions skip banding entirely and scan exhaustively (see
// exactScanThreshold).
func (p *partition) candidateIndices(qSig Signature) []int {
	if len(p.entries) <= exactScanThreshold {
		out := make([]int, len(p.entries))
		for i := range out {
			out[i] = i
		}
		return out
	}
	seen := make(map[int]struct{})
	var out []int
	for b := 0; b < p.bands; b++ {
		bucket := bandHash(qSig, b, p.rows)
		for _, idx := range p.buckets[b][bucket] {
			if _, dup := seen[idx]; !dup {
				seen[idx] = struct{}{}
				out = append(out, idx)
			}
		}
	}
	return out
}

// bandHash hashes the rows-wide slice of sig belonging to band b into a
// single bucket key.
func bandHash(sig Signature, band, rows int) uint64 {
	start := band * rows
	end := start + rows
	if end > len(sig) {
		end = len(sig)
	}
	h := xxhash.New()
	buf := make([]byte, 8)
	for i := start; i < end; i++ {
		v := sig[i]
		for j := 0; j < 8; j++ {
			buf[j] = byte(v >> (8 * j))
		}
		h.Write(buf)
	}
	return h.Sum64()
}

// containmentToJaccard converts a containment threshold over an indexed
// set of size sSize against a query of size qSize into the equivalent
// (minimum) Jaccard threshold, using |A∩B| ≥ θ·sSize and
// J = |A∩B|/(sSize+qSize-|A∩B|).
func containmentToJaccard(theta float64, sSize, qSize int) float64 {
	intersection := theta * float64(sSize)
	denom := float64(sSize) + float64(qSize) - intersection
	if denom <= 0 {
		return 1
	}
	return intersection / denom
}

// optimalBandsRows picks (b, r) with b*r ≤ numPerm minimizing the weighted
// sum of false-positive and false-negative probability at the target
// Jaccard threshold, the same b/r-selection idea classic LSH tuning uses
// (Leskovec/Rajaraman/Ullman ch.3), parameterized by the caller's
// (falsePositiveWeight, falseNegativeWeight) pair.
func optimalBandsRows(numPerm int, threshold float64, weights [2]float64) (bands, rows int) {
	bestBands, bestRows := 1, numPerm
	bestCost := math.Inf(1)
	for r := 1; r <= numPerm; r++ {
		b := numPerm / r
		if b < 1 {
			continue
		}
		fp := falsePositiveArea(threshold, b, r)
		fn := falseNegativeArea(threshold, b, r)
		cost := weights[0]*fp + weights[1]*fn
		if cost < bestCost {
			bestCost = cost
			bestBands, bestRows = b, r
		}
	}
	return bestBands, bestRows
}

// s-curve probability a pair with true Jaccard similarity s is declared a
// candidate by banded LSH with b bands of r rows: 1-(1-s^r)^b.
func candidateProbability(s float64, b, r int) float64 {
	return 1 - math.Pow(1-math.Pow(s, float64(r)), float64(b))
}

// falsePositiveArea approximates, via simple quadrature, the probability
// mass below threshold that is nonetheless declared a candidate.
func falsePositiveArea(threshold float64, b, r int) float64 {
	const steps = 50
	sum := 0.0
	step := threshold / steps
	for i := 0; i < steps; i++ {
		s := step * (float64(i) + 0.5)
		sum += candidateProbability(s, b, r) * step
	}
	return sum
}

// falseNegativeArea approximates the probability mass above threshold
// that is nonetheless missed.
func falseNegativeArea(threshold float64, b, r int) float64 {
	const steps = 50
	sum := 0.0
	step := (1 - threshold) / steps
	for i := 0; i < steps; i++ {
		s := threshold + step*(float64(i)+0.5)
		sum += (1 - candidateProbability(s, b, r)) * step
	}
	return sum
}
