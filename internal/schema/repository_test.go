package schema

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeSchema(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRepositoryLoad(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "core.json", `{
		"fields": [
			{"id": "title", "system": {"datatype": "string", "required": true}, "prompt": {"label": "Titel"}}
		],
		"output_template": {"title": ""}
	}`)

	repo := NewRepository(dir, testLogger())

	doc, err := repo.Load("core")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.ID != "core" {
		t.Errorf("ID = %q, want core (derived from file name)", doc.ID)
	}
	if f := doc.FieldByID("title"); f == nil || !f.System.Required {
		t.Errorf("title field = %+v, want required", f)
	}

	// Same document with and without the .json suffix.
	again, err := repo.Load("core.json")
	if err != nil {
		t.Fatalf("Load with suffix failed: %v", err)
	}
	if again != doc {
		t.Error("cache returned a different document instance")
	}
}

func TestRepositoryLoadMissing(t *testing.T) {
	repo := NewRepository(t.TempDir(), testLogger())
	if _, err := repo.Load("nope"); err == nil {
		t.Error("expected error for missing schema")
	}
}

func TestRepositoryContentTypes(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "core.json", `{"fields": []}`)
	writeSchema(t, dir, "event.json", `{"id": "event", "description": "Events.", "fields": []}`)
	writeSchema(t, dir, "material.json", `{"id": "material", "description": "Materials.", "fields": []}`)
	writeSchema(t, dir, "notes.txt", `ignore me`)
	writeSchema(t, dir, "broken.json", `{not json`)

	repo := NewRepository(dir, testLogger())
	types, err := repo.ContentTypes()
	if err != nil {
		t.Fatalf("ContentTypes failed: %v", err)
	}

	if len(types) != 2 {
		t.Fatalf("got %d content types, want 2 (core, non-JSON, and broken files excluded): %+v", len(types), types)
	}
	if types[0].Name != "event" || types[1].Name != "material" {
		t.Errorf("types not sorted by name: %+v", types)
	}
	if types[0].File != "event.json" || types[0].Description != "Events." {
		t.Errorf("event entry = %+v", types[0])
	}
}

func TestFieldDefaults(t *testing.T) {
	f := &Field{ID: "x", System: System{Datatype: TypeString}}
	if !f.AIFillable() || !f.AskUser() || !f.Eligible() {
		t.Error("flags should default to true")
	}
	no := false
	f.System.AIFillable = &no
	if f.Eligible() {
		t.Error("ai_fillable=false field should not be eligible")
	}
}

func TestFieldVariants(t *testing.T) {
	single := &Field{System: System{Items: &Items{Shape: &Shape{Properties: []string{"a"}}}}}
	if got := single.Variants(); len(got) != 1 || got[0].Properties[0] != "a" {
		t.Errorf("single shape should fold into one variant, got %+v", got)
	}
	if !single.Shaped() {
		t.Error("field with items should be shaped")
	}

	plain := &Field{System: System{Datatype: TypeString}}
	if plain.Shaped() || plain.Variants() != nil {
		t.Error("plain field should not be shaped")
	}
}
