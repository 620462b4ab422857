// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lshindex bulk-indexes many class signature sets and answers
// containment-style nearest-neighbor queries ("which indexed sets S
// satisfy |S ∩ Q| / |S| ≥ θ"), partitioned by indexed-set cardinality so
// the problem reduces to per-partition Jaccard-LSH with a threshold
// derived from θ and the cardinality ratio, the MinHash-LSH-ensemble
// scheme (Zhu et al.).
package lshindex

import (
	"math/bits"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// NumPermutations is the number of independent hash functions each
// MinHash sketch uses.
const NumPermutations = 256

// mersennePrime63 is used as the modulus for the universal hash family
// generating each permutation. Its value is 2^61-1, smaller than the range
// of xxhash64 outputs; mulMod reduces the full 64-bit base value modulo it.
const mersennePrime63 = (uint64(1) << 61) - 1

// permCoeffs holds the deterministic (a, b) coefficient pairs used to
// derive NumPermutations independent hash functions from one xxhash64
// base value, following the standard "universal hashing" MinHash
// construction: h_i(x) = (a_i*x + b_i) mod mersennePrime63.
//
// Determinism requirement: these coefficients are generated once, from a
// fixed seed, at package initialization, never from a process-random
// source, so two processes hashing the same signature set always agree.
var permCoeffs = generatePermCoeffs(NumPermutations, 0xC0FFEE)

func generatePermCoeffs(n int, seed int64) [][2]uint64 {
	r := rand.New(rand.NewSource(seed))
	coeffs := make([][2]uint64, n)
	for i := range coeffs {
		a := uint64(r.Int63())%(mersennePrime63-1) + 1
		b := uint64(r.Int63()) % mersennePrime63
		coeffs[i] = [2]uint64{a, b}
	}
	return coeffs
}

// Signature is a MinHash sketch: NumPermutations minimum hash values, one
// per permutation, over the token set passed to NewSignature.
type Signature [NumPermutations]uint64

// NewSignature builds a MinHash sketch over sig (a class's hex-digest
// signature set).
func NewSignature(sig map[string]struct{}) Signature {
	var s Signature
	for i := range s {
		s[i] = ^uint64(0)
	}
	for token := range sig {
		base := xxhash.Sum64String(token)
		for i, c := range permCoeffs {
			h := mulMod(c[0], base, mersennePrime63) + c[1]
			h %= mersennePrime63
			if h < s[i] {
				s[i] = h
			}
		}
	}
	return s
}

// mulMod computes (a*b) mod m without overflow for any 64-bit a and b: the
// full 128-bit product is formed with bits.Mul64, and its high word is
// reduced modulo m first so bits.Div64 never overflows.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi%m, lo, m)
	return rem
}

// EstimateJaccard returns the fraction of permutation slots at which a and
// b agree, an unbiased estimator of the Jaccard similarity of the two
// underlying sets.
func EstimateJaccard(a, b Signature) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(NumPermutations)
}

// EstimateContainment returns an estimate of |S ∩ Q| / |sSize|, derived
// from the Jaccard estimate between sSig (the indexed set, of size sSize)
// and qSig (the query set, of size qSize):
//
//	J ≈ |S∩Q| / (|S|+|Q|-|S∩Q|)  =>  |S∩Q| ≈ J*(sSize+qSize) / (1+J)
//
// Returns 0 when either set is empty.
func EstimateContainment(sSig Signature, sSize int, qSig Signature, qSize int) float64 {
	if sSize == 0 || qSize == 0 {
		return 0
	}
	j := EstimateJaccard(sSig, qSig)
	intersection := j * float64(sSize+qSize) / (1 + j)
	return intersection / float64(sSize)
}
