package evaluation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	content := `{"id": "r1", "text": "Workshop am 15.9.2026 in Berlin", "expected": {"title": "Workshop", "event_date": "2026-09-15"}}

{"id": "r2", "text": "Mathe-Arbeitsblatt", "expected": {"title": "Mathe-Arbeitsblatt"}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := NewLoader(path, slog.New(slog.DiscardHandler)).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []Record{
		{
			ID:   "r1",
			Text: "Workshop am 15.9.2026 in Berlin",
			Expected: map[string]any{
				"title":      "Workshop",
				"event_date": "2026-09-15",
			},
		},
		{
			ID:       "r2",
			Text:     "Mathe-Arbeitsblatt",
			Expected: map[string]any{"title": "Mathe-Arbeitsblatt"},
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSampleLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	content := `{"id": "r1", "text": "a", "expected": {}}
{"id": "r2", "text": "b", "expected": {}}
{"id": "r3", "text": "c", "expected": {}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := NewLoader(path, slog.New(slog.DiscardHandler)).LoadSample(2)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if len(records) != 2 || records[1].ID != "r2" {
		t.Errorf("got %d records (last %v), want 2 ending at r2", len(records), records[len(records)-1].ID)
	}
}

func TestLoadBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\": \"r1\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(path, slog.New(slog.DiscardHandler)).Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := NewLoader("dataset.csv", slog.New(slog.DiscardHandler)).Load(); err == nil {
		t.Error("expected unsupported format error")
	}
}
