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
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateClassName is the Weaviate class (collection) every indexed
// library class is stored under.
const WeaviateClassName = "LibIDClassSignature"

// WeaviateConfig configures a WeaviateIndex.
type WeaviateConfig struct {
	// ClassName overrides WeaviateClassName when non-empty.
	ClassName string

	// Threshold is θ, passed to Weaviate as the minimum certainty of the
	// near-vector search (Weaviate has no native
	// containment query; this index approximates containment search with
	// a nearest-neighbor search over a MinHash-derived sketch vector).
	Threshold float64
}

// WeaviateIndex is an alternate Index backed by a remote Weaviate cluster,
// for corpora too large to hold an Ensemble in one process's memory. It
// upserts one object per library class (properties carry the library
// metadata; the MinHash sketch is stored as the object's vector) and
// answers queries via nearest-neighbor search.
//
// This is an explicit approximation, never the default: Weaviate's
// nearest-neighbor search optimizes cosine/dot-product similarity over
// dense vectors, not the exact set-containment semantics §4.4 specifies,
// so results here trade exactness for horizontal scale beyond what the
// in-process Ensemble can hold.
type WeaviateIndex struct {
	client    *weaviate.Client
	className string
	threshold float64
}

// NewWeaviateIndex returns a WeaviateIndex using client against an
// existing (or newly created) Weaviate schema class.
func NewWeaviateIndex(ctx context.Context, client *weaviate.Client, cfg WeaviateConfig) (*WeaviateIndex, error) {
	className := cfg.ClassName
	if className == "" {
		className = WeaviateClassName
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.8
	}

	exists, err := client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("lshindex: checking weaviate schema: %w", err)
	}
	if !exists {
		class := &models.Class{
			Class:      className,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "libraryNameVersion", DataType: []string{"text"}},
				{Name: "rootPackage", DataType: []string{"text"}},
				{Name: "classCount", DataType: []string{"int"}},
				{Name: "totalSignatureCount", DataType: []string{"int"}},
				{Name: "category", DataType: []string{"text"}},
				{Name: "className", DataType: []string{"text"}},
				{Name: "signatureCount", DataType: []string{"int"}},
			},
		}
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return nil, fmt.Errorf("lshindex: creating weaviate schema: %w", err)
		}
	}
	return &WeaviateIndex{client: client, className: className, threshold: threshold}, nil
}

// Upsert indexes one library class's signature set.
func (w *WeaviateIndex) Upsert(ctx context.Context, key CandidateKey, sig map[string]struct{}) error {
	vec := sketchVector(NewSignature(sig))
	props := map[string]any{
		"libraryNameVersion":  key.LibraryNameVersion,
		"rootPackage":         key.RootPackage,
		"classCount":          key.ClassCount,
		"totalSignatureCount": key.TotalSignatureCount,
		"category":            key.Category,
		"className":           key.ClassName,
		"signatureCount":      len(sig),
	}
	_, err := w.client.Data().Creator().
		WithClassName(w.className).
		WithProperties(props).
		WithVector(vec).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("lshindex: upserting %s into weaviate: %w", key.ClassName, err)
	}
	return nil
}

// Query runs a nearest-neighbor search for classes whose sketch vector is
// close to sig's, with Threshold as the minimum certainty. No client-side
// containment filter is applied to the rows Weaviate returns.
func (w *WeaviateIndex) Query(ctx context.Context, sig map[string]struct{}) ([]CandidateKey, error) {
	qSig := NewSignature(sig)
	vec := sketchVector(qSig)

	fields := []graphql.Field{
		{Name: "libraryNameVersion"}, {Name: "rootPackage"}, {Name: "classCount"},
		{Name: "totalSignatureCount"}, {Name: "category"}, {Name: "className"}, {Name: "signatureCount"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vec).WithCertainty(float32(w.threshold))

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(256).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("lshindex: weaviate query: %w", err)
	}
	if result.Errors != nil && len(result.Errors) > 0 {
		return nil, fmt.Errorf("lshindex: weaviate query returned errors: %v", result.Errors)
	}
	return decodeWeaviateResult(result, w.className)
}

// rootPackageFilter builds a where-filter that narrows a query to a
// specific root package. Query does not apply it.
func (w *WeaviateIndex) rootPackageFilter(pkg string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"rootPackage"}).
		WithOperator(filters.Equal).
		WithValueText(pkg)
}

// sketchVector projects a MinHash Signature into a small float32 vector
// Weaviate can index, by hashing fixed-size windows of the signature into
// float components (a compact, approximate dimensionality reduction of
// the full 256-entry sketch).
func sketchVector(sig Signature) []float32 {
	const dims = 64
	window := len(sig) / dims
	vec := make([]float32, dims)
	for d := 0; d < dims; d++ {
		var acc uint64
		for i := d * window; i < (d+1)*window; i++ {
			acc ^= sig[i]
		}
		vec[d] = float32(acc%1000000) / 1000000
	}
	return vec
}

func decodeWeaviateResult(result *models.GraphQLResponse, className string) ([]CandidateKey, error) {
	// Decoding GraphQL's generic map response into typed rows. A response
	// without the expected Get/className shape yields no rows and no error,
	// and rows that are not objects are skipped.
	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := data[className].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]CandidateKey, 0, len(rows))
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, CandidateKey{
			LibraryNameVersion:  stringField(m, "libraryNameVersion"),
			RootPackage:         stringField(m, "rootPackage"),
			ClassCount:          intField(m, "classCount"),
			TotalSignatureCount: intField(m, "totalSignatureCount"),
			Category:            stringField(m, "category"),
			ClassName:           stringField(m, "className"),
		})
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
