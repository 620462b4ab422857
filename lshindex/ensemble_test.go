package lshindex

import (
	"context"
	"fmt"
	"testing"
)

func sigSet(prefix string, n int) map[string]struct{} {
	s := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		s[fmt.Sprintf("%s-%d", prefix, i)] = struct{}{}
	}
	return s
}

func TestEnsemble_ExactMatchIsRetrieved(t *testing.T) {
	libSig := sigSet("shared", 40)
	e := NewEnsemble(DefaultEnsembleOptions())
	err := e.Build([]ClassEntry{
		{
			Key:       CandidateKey{LibraryNameVersion: "okhttp_4.9.0", RootPackage: "okhttp3", ClassCount: 1, TotalSignatureCount: 40, Category: "networking", ClassName: "Lokhttp3/OkHttpClient;"},
			Signature: libSig,
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := e.Query(context.Background(), libSig)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate for an exact-match query, got %d: %+v", len(got), got)
	}
	if got[0].ClassName != "Lokhttp3/OkHttpClient;" {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestEnsemble_DisjointSetsNotRetrieved(t *testing.T) {
	e := NewEnsemble(DefaultEnsembleOptions())
	err := e.Build([]ClassEntry{
		{
			Key:       CandidateKey{LibraryNameVersion: "lib_1.0", ClassName: "Lcom/lib/Foo;"},
			Signature: sigSet("lib", 40),
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := e.Query(context.Background(), sigSet("app", 40))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates for disjoint sets, got %+v", got)
	}
}

func TestEnsemble_PartialSupersetSatisfiesContainment(t *testing.T) {
	// Library set is a subset of the app query's observed signatures
	// (app retains all library signatures plus its own code), this is
	// the "partial-strip" style shape: containment(lib, query) should be
	// high even though Jaccard is low because the query is much bigger.
	lib := sigSet("shared", 30)
	query := make(map[string]struct{})
	for k := range lib {
		query[k] = struct{}{}
	}
	for k := range sigSet("appcode", 200) {
		query[k] = struct{}{}
	}

	e := NewEnsemble(DefaultEnsembleOptions())
	err := e.Build([]ClassEntry{
		{Key: CandidateKey{LibraryNameVersion: "lib_1.0", ClassName: "Lcom/lib/Foo;"}, Signature: lib},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := e.Query(context.Background(), query)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the fully-contained library to be retrieved, got %d candidates", len(got))
	}
}

func TestEnsemble_QueryBeforeBuildReturnsError(t *testing.T) {
	e := NewEnsemble(DefaultEnsembleOptions())
	_, err := e.Query(context.Background(), sigSet("x", 5))
	if err == nil {
		t.Fatal("expected ErrNotReady before Build is called")
	}
}

func TestEnsemble_ClassWithNoSignaturesExcluded(t *testing.T) {
	e := NewEnsemble(DefaultEnsembleOptions())
	err := e.Build([]ClassEntry{
		{Key: CandidateKey{ClassName: "Lcom/lib/Empty;"}, Signature: map[string]struct{}{}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := e.Query(context.Background(), sigSet("anything", 10))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected the empty-signature class to be excluded, got %+v", got)
	}
}
