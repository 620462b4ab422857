package profile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aleutian-labs/libid/fingerprint"
)

func TestFileStore_LibraryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	tables := NewClassTables()
	tables.AddClass("Lcom/example/Foo;", map[string]struct{}{"abc123": {}}, fingerprint.ClassRelations{
		Invocations: []fingerprint.ClassInvocation{{CallerMethod: "()V", CalleeClass: "Lcom/example/Bar;", CalleeMethod: "(I)V"}},
		Interface:   []string{"Lcom/example/Plugin;"},
		Superclass:  "Lcom/example/Base;",
	})
	want := &LibraryProfile{
		Name:        "okhttp",
		Version:     "4.9.0",
		Category:    "networking",
		RootPackage: "com/example",
		ClassesNum:  1,
		ClassTables: tables,
	}

	ctx := context.Background()
	if err := store.SaveLibrary(ctx, want); err != nil {
		t.Fatalf("SaveLibrary: %v", err)
	}

	got, err := store.LoadLibrary(ctx, filepath.Join(dir, "okhttp_4.9.0.json"))
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if got.Name != want.Name || got.Version != want.Version {
		t.Fatalf("round-trip mismatch: %+v vs %+v", got, want)
	}
	if got.ClassesSuperclass["Lcom/example/Foo;"] != "Lcom/example/Base;" {
		t.Fatalf("superclass not round-tripped: %+v", got.ClassesSuperclass)
	}
	xrefKey := "()V->Lcom/example/Bar;->(I)V"
	if got.ClassesXrefTos["Lcom/example/Foo;"][xrefKey] != 1 {
		t.Fatalf("xref not round-tripped: %+v", got.ClassesXrefTos)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.LoadLibrary(context.Background(), "/nonexistent/path.json")
	if err == nil {
		t.Fatal("expected error loading a missing profile")
	}
}

func TestFileStore_AppRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	tables := NewClassTables()
	tables.AddClass("Lcom/example/Main;", map[string]struct{}{"def456": {}}, fingerprint.ClassRelations{})
	app := &AppProfile{
		Filename:    "sample.apk",
		AppID:       "com.example.sample",
		Permissions: []string{"INTERNET"},
		ClassTables: tables,
	}
	ctx := context.Background()
	if err := store.SaveApp(ctx, app); err != nil {
		t.Fatalf("SaveApp: %v", err)
	}
	got, err := store.LoadApp(ctx, filepath.Join(dir, "sample.json"))
	if err != nil {
		t.Fatalf("LoadApp: %v", err)
	}
	if got.AppID != app.AppID {
		t.Fatalf("AppID = %q, want %q", got.AppID, app.AppID)
	}
}

func TestLibraryProfile_TotalSignatureCount(t *testing.T) {
	lp := &LibraryProfile{ClassTables: ClassTables{
		ClassesSignatures: map[string][]string{
			"Lcom/example/A;": {"s1", "s2"},
			"Lcom/example/B;": {"s3"},
		},
	}}
	if got := lp.TotalSignatureCount(); got != 3 {
		t.Fatalf("TotalSignatureCount() = %d, want 3", got)
	}
}

func TestClassTables_ToClassGraph_RoundTrip(t *testing.T) {
	tables := NewClassTables()
	tables.AddClass("Lcom/example/Foo;", map[string]struct{}{"abc": {}}, fingerprint.ClassRelations{
		Invocations: []fingerprint.ClassInvocation{{CallerMethod: "()V", CalleeClass: "Lcom/example/Bar;", CalleeMethod: "(I)V"}},
		Interface:   []string{"Lcom/example/Plugin;"},
		Superclass:  "Lcom/example/Base;",
	})
	g := tables.ToClassGraph()
	if g.Superclass["Lcom/example/Foo;"] != "Lcom/example/Base;" {
		t.Fatalf("superclass not reconstructed: %v", g.Superclass)
	}
	if len(g.Invocations["Lcom/example/Foo;"]) != 1 {
		t.Fatalf("invocation not reconstructed: %v", g.Invocations)
	}
}
