package evaluation

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openeduhub/metaextract/internal/reconcile"
)

func TestCompareDocumentsExactMatch(t *testing.T) {
	expected := map[string]any{
		"title":      "Workshop zur digitalen Bildung",
		"event_date": "2026-09-15",
		"license":    map[string]any{"label": "CC BY"},
	}
	actual := map[string]any{
		"title":      "Workshop zur digitalen Bildung",
		"event_date": "2026-09-15",
		"license":    reconcile.LabeledValue{Label: "CC BY", URI: "https://creativecommons.org/licenses/by/4.0/"},
	}

	result := CompareDocuments(expected, actual)
	if result.OverallScore != 1.0 {
		t.Errorf("OverallScore = %v, want 1.0", result.OverallScore)
	}
	if len(result.MissingFields) != 0 || len(result.ExtraFields) != 0 {
		t.Errorf("unexpected field diffs: missing=%v extra=%v", result.MissingFields, result.ExtraFields)
	}
}

func TestCompareDocumentsMissingAndExtra(t *testing.T) {
	expected := map[string]any{
		"title":   "Ein Titel",
		"license": "CC BY",
	}
	actual := map[string]any{
		"title":    "Ein Titel",
		"keywords": []any{"extra"},
	}

	result := CompareDocuments(expected, actual)
	if diff := cmp.Diff([]string{"license"}, result.MissingFields); diff != "" {
		t.Errorf("MissingFields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"keywords"}, result.ExtraFields); diff != "" {
		t.Errorf("ExtraFields mismatch (-want +got):\n%s", diff)
	}
	if result.OverallScore != 0.5 {
		t.Errorf("OverallScore = %v, want 0.5", result.OverallScore)
	}
}

func TestCompareDocumentsEmptyExpectedFieldsIgnored(t *testing.T) {
	expected := map[string]any{
		"title":    "Ein Titel",
		"keywords": []any{},
		"notes":    "",
	}
	actual := map[string]any{"title": "Ein Titel"}

	result := CompareDocuments(expected, actual)
	if result.OverallScore != 1.0 {
		t.Errorf("OverallScore = %v, want 1.0", result.OverallScore)
	}
	if _, ok := result.FieldScores["keywords"]; ok {
		t.Error("empty expected field was scored")
	}
}

func TestValueSimilarity(t *testing.T) {
	tests := []struct {
		name string
		want any
		got  any
		min  float64
		max  float64
	}{
		{"identical strings", "Mathematik", "Mathematik", 1, 1},
		{"near strings", "Mathematik", "Matematik", 0.85, 0.99},
		{"unrelated strings", "Mathematik", "Kunst", 0, 0.3},
		{"case and separators ignored", "CC BY-SA", "cc by sa", 1, 1},
		{"labeled vs string", reconcile.LabeledValue{Label: "Deutsch"}, "Deutsch", 1, 1},
		{"numbers equal", 42.0, 42.0, 1, 1},
		{"numbers differ", 42.0, 43.0, 0, 0},
		{"booleans", true, true, 1, 1},
		{"type mismatch", true, "true", 0, 0},
		{
			"nested objects",
			map[string]any{"addressLocality": "Berlin", "addressCountry": "Deutschland"},
			map[string]any{"addressLocality": "Berlin", "addressCountry": "Deutschland"},
			1, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := valueSimilarity(tt.want, tt.got)
			if got < tt.min || got > tt.max {
				t.Errorf("valueSimilarity(%v, %v) = %v, want in [%v, %v]",
					tt.want, tt.got, got, tt.min, tt.max)
			}
		})
	}
}

func TestSliceSimilarityOrderIndependent(t *testing.T) {
	want := []any{"Mathematik", "Informatik"}
	got := []any{"Informatik", "Mathematik"}
	if s := sliceSimilarity(want, got); s != 1.0 {
		t.Errorf("sliceSimilarity = %v, want 1.0", s)
	}
}

func TestSliceSimilarityPenalizesExtras(t *testing.T) {
	want := []any{"Mathematik"}
	got := []any{"Mathematik", "Astrologie", "Kochen"}
	s := sliceSimilarity(want, got)
	if math.Abs(s-1.0/3.0) > 1e-9 {
		t.Errorf("sliceSimilarity = %v, want 1/3", s)
	}
}

func TestBuildReport(t *testing.T) {
	results := []RecordResult{
		{ID: "a", Score: 1.0, Comparison: &ComparisonResult{FieldScores: map[string]float64{"title": 1.0, "license": 1.0}}},
		{ID: "b", Score: 0.5, Comparison: &ComparisonResult{FieldScores: map[string]float64{"title": 1.0, "license": 0.0}}},
		{ID: "c", Err: "provider unreachable", Comparison: &ComparisonResult{FieldScores: map[string]float64{}}},
	}

	report := BuildReport("fixtures.jsonl", "openai", "gpt-4o", results)
	if report.Records != 3 || report.Failures != 1 {
		t.Errorf("records/failures = %d/%d, want 3/1", report.Records, report.Failures)
	}
	if report.MeanScore != 0.5 {
		t.Errorf("MeanScore = %v, want 0.5", report.MeanScore)
	}
	if report.FieldMeans["license"] != 0.5 {
		t.Errorf("license mean = %v, want 0.5", report.FieldMeans["license"])
	}
	if weakest := report.WeakestFields(1); len(weakest) != 1 || weakest[0] != "license" {
		t.Errorf("WeakestFields = %v, want [license]", weakest)
	}
}
