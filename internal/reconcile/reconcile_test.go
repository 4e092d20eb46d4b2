package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openeduhub/metaextract/internal/fields"
	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/shape"
)

func testDoc() *schema.Document {
	return &schema.Document{
		ID: "core",
		Fields: []schema.Field{
			{ID: "title", System: schema.System{Datatype: schema.TypeString, Required: true}},
			{
				ID: "license",
				System: schema.System{
					Datatype: schema.TypeString,
					Vocabulary: &schema.Vocabulary{
						Type: schema.VocabClosed,
						Concepts: []schema.Concept{
							{Label: "CC BY", URI: "https://creativecommons.org/licenses/by/4.0/"},
						},
					},
				},
			},
			{
				ID: "discipline",
				System: schema.System{
					Datatype: schema.TypeArray,
					Multiple: true,
					Vocabulary: &schema.Vocabulary{
						Concepts: []schema.Concept{
							{Label: "Mathematik", URI: "https://w3id.org/d/mathe"},
						},
					},
				},
			},
			{
				ID: "location",
				System: schema.System{
					Datatype: schema.TypeObject,
					Items: &schema.Items{
						Shape: &schema.Shape{Properties: []string{"streetAddress", "postalCode", "latitude", "longitude"}},
					},
				},
			},
		},
		OutputTemplate: map[string]any{"title": "", "keywords": []any{}},
	}
}

func TestBuild(t *testing.T) {
	doc := testDoc()
	col := fields.NewCollection()
	for i := range doc.Fields {
		col.Add(fields.NewState(&doc.Fields[i]))
	}

	col.Fill("title", "Workshop zur digitalen Bildung", 1)
	col.Fill("license", "CC BY", 1)
	col.Fill("discipline", []any{"Mathematik", "Informatik"}, 1)
	locValue := map[string]any{
		"streetAddress": "Unter den Linden 1",
		"postalCode":    "10117",
	}
	col.SetSubs("location", shape.Expand(&doc.Fields[3], locValue))

	got := Build(col, doc)

	want := map[string]any{
		"keywords": []any{},
		"title":    "Workshop zur digitalen Bildung",
		"license":  LabeledValue{Label: "CC BY", URI: "https://creativecommons.org/licenses/by/4.0/"},
		"discipline": []any{
			LabeledValue{Label: "Mathematik", URI: "https://w3id.org/d/mathe"},
			LabeledValue{Label: "Informatik"},
		},
		"location": locValue,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildKeepsTemplateForEmptyFields(t *testing.T) {
	doc := testDoc()
	col := fields.NewCollection()
	for i := range doc.Fields {
		col.Add(fields.NewState(&doc.Fields[i]))
	}

	got := Build(col, doc)
	if got["title"] != "" {
		t.Errorf("empty title = %v, want template default", got["title"])
	}
	if _, ok := got["license"]; ok {
		t.Error("empty field without template entry must stay absent")
	}
}

func TestBuildNoSubFieldKeysAtTopLevel(t *testing.T) {
	doc := testDoc()
	col := fields.NewCollection()
	for i := range doc.Fields {
		col.Add(fields.NewState(&doc.Fields[i]))
	}
	col.SetSubs("location", shape.Expand(&doc.Fields[3], map[string]any{"postalCode": "10117"}))

	got := Build(col, doc)
	for key := range got {
		if key != "title" && key != "keywords" && key != "location" {
			t.Errorf("unexpected top-level key %q", key)
		}
	}
	loc, ok := got["location"].(map[string]any)
	if !ok || loc["postalCode"] != "10117" {
		t.Errorf("location = %v", got["location"])
	}
}
