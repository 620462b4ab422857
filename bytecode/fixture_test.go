package bytecode

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFixtureParser_Parse(t *testing.T) {
	doc := `{
		"app": {"filename": "sample.apk", "app_id": "com.example.sample", "permissions": ["INTERNET"]},
		"classes": [
			{
				"name": "Lcom/example/Foo;",
				"access_flags": "public",
				"super": "Ljava/lang/Object;",
				"interfaces": ["Ljava/lang/Runnable;"],
				"methods": [
					{"name": "run", "descriptor": "()V", "blocks": [], "calls": []}
				]
			}
		]
	}`
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	classes, meta, err := FixtureParser{}.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.AppID != "com.example.sample" {
		t.Fatalf("AppID = %q, want com.example.sample", meta.AppID)
	}
	if len(classes) != 1 || classes[0].Name != "Lcom/example/Foo;" {
		t.Fatalf("unexpected classes: %+v", classes)
	}
	if len(classes[0].Methods) != 1 || classes[0].Methods[0].Name != "run" {
		t.Fatalf("unexpected methods: %+v", classes[0].Methods)
	}
}

func TestFixtureParser_Ext(t *testing.T) {
	if ext := (FixtureParser{}).Ext(); len(ext) != 1 || ext[0] != ".json" {
		t.Fatalf("Ext() = %v, want [.json]", ext)
	}
}

func TestSupports(t *testing.T) {
	parsers := []Parser{
		FixtureParser{},
		ExternalToolParser{Command: "libid-dex-extract", SupportedExt: []string{".apk", ".dex"}},
	}
	if p, ok := Supports(parsers, ".apk"); !ok || p == nil {
		t.Fatalf("expected .apk to be supported")
	}
	if _, ok := Supports(parsers, ".ipa"); ok {
		t.Fatalf("did not expect .ipa to be supported")
	}
}
