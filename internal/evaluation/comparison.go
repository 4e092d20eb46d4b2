package evaluation

import (
	"fmt"
	"math"
	"sort"

	"github.com/openeduhub/metaextract/internal/reconcile"
	"github.com/openeduhub/metaextract/internal/vocab"
)

// ComparisonResult scores one generated document against its reference.
type ComparisonResult struct {
	OverallScore  float64            `json:"overall_score" yaml:"overall_score"`
	FieldScores   map[string]float64 `json:"field_scores" yaml:"field_scores"`
	MissingFields []string           `json:"missing_fields,omitempty" yaml:"missing_fields,omitempty"`
	ExtraFields   []string           `json:"extra_fields,omitempty" yaml:"extra_fields,omitempty"`
}

// CompareDocuments scores a generated metadata document against the expected
// one. The overall score is the mean per-field similarity over the expected
// fields; fields only the generated document fills are reported but not
// scored.
func CompareDocuments(expected, actual map[string]any) *ComparisonResult {
	result := &ComparisonResult{
		FieldScores: make(map[string]float64),
	}

	var total float64
	var count int
	for key, want := range expected {
		if isEmptyValue(want) {
			continue
		}
		count++

		got, ok := actual[key]
		if !ok || isEmptyValue(got) {
			result.MissingFields = append(result.MissingFields, key)
			result.FieldScores[key] = 0
			continue
		}
		score := valueSimilarity(want, got)
		result.FieldScores[key] = score
		total += score
	}

	for key, got := range actual {
		if isEmptyValue(got) {
			continue
		}
		if want, ok := expected[key]; !ok || isEmptyValue(want) {
			result.ExtraFields = append(result.ExtraFields, key)
		}
	}

	sort.Strings(result.MissingFields)
	sort.Strings(result.ExtraFields)
	if count > 0 {
		result.OverallScore = total / float64(count)
	}
	return result
}

// valueSimilarity scores two field values in [0, 1]. Vocabulary values
// compare by label, strings by Levenshtein similarity, arrays by greedy
// best-element matching.
func valueSimilarity(want, got any) float64 {
	if wl, ok := asLabel(want); ok {
		if gl, gok := asLabel(got); gok {
			return vocab.Similarity(vocab.Normalize(wl), vocab.Normalize(gl))
		}
		if gs, gok := got.(string); gok {
			return vocab.Similarity(vocab.Normalize(wl), vocab.Normalize(gs))
		}
		return 0
	}
	if gl, ok := asLabel(got); ok {
		if ws, wok := want.(string); wok {
			return vocab.Similarity(vocab.Normalize(ws), vocab.Normalize(gl))
		}
		return 0
	}

	switch w := want.(type) {
	case string:
		g, ok := got.(string)
		if !ok {
			g = fmt.Sprint(got)
		}
		return vocab.Similarity(vocab.Normalize(w), vocab.Normalize(g))
	case bool:
		if g, ok := got.(bool); ok && g == w {
			return 1
		}
		return 0
	case float64, int:
		return numberSimilarity(toFloat(w), got)
	case []any:
		return sliceSimilarity(w, asSlice(got))
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return 0
		}
		return CompareDocuments(w, g).OverallScore
	default:
		if fmt.Sprint(want) == fmt.Sprint(got) {
			return 1
		}
		return 0
	}
}

func numberSimilarity(want float64, got any) float64 {
	var g float64
	switch t := got.(type) {
	case float64:
		g = t
	case int:
		g = float64(t)
	default:
		return 0
	}
	if math.Abs(want-g) < 1e-9 {
		return 1
	}
	return 0
}

// sliceSimilarity matches each expected element to its best counterpart,
// normalized by the longer list so hallucinated extras cost score.
func sliceSimilarity(want, got []any) float64 {
	if len(want) == 0 || len(got) == 0 {
		return 0
	}
	var total float64
	for _, w := range want {
		best := 0.0
		for _, g := range got {
			if s := valueSimilarity(w, g); s > best {
				best = s
			}
		}
		total += best
	}
	longer := len(want)
	if len(got) > longer {
		longer = len(got)
	}
	return total / float64(longer)
}

// asLabel unwraps vocabulary value shapes to their label.
func asLabel(v any) (string, bool) {
	switch t := v.(type) {
	case reconcile.LabeledValue:
		return t.Label, true
	case map[string]any:
		if label, ok := t["label"].(string); ok && len(t) <= 2 {
			return label, true
		}
	}
	return "", false
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		if v == nil {
			return nil
		}
		return []any{v}
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
