// Package vocab resolves free-text values against vocabulary concept lists:
// exact match first, then a normalized comparison, then fuzzy matching by
// edit distance for controlled vocabularies.
package vocab

import (
	"math"
	"regexp"
	"strings"

	"github.com/openeduhub/metaextract/internal/schema"
)

// maxEditDistance caps the fuzzy tolerance regardless of input length.
const maxEditDistance = 3

var separators = regexp.MustCompile(`[-_]+`)
var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowercases a label, turns hyphens and underscores into spaces,
// and collapses whitespace, so "machine-learning" and "Machine  Learning"
// compare equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = separators.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return s
}

// Tolerance returns the maximum accepted edit distance for an input string:
// min(3, ceil(0.3 * len)). Roughly 30% character noise is accepted before a
// value is considered a different term.
func Tolerance(input string) int {
	limit := int(math.Ceil(0.3 * float64(len([]rune(input)))))
	if limit > maxEditDistance {
		return maxEditDistance
	}
	return limit
}

// Find resolves value to a concept, or nil when nothing matches. Fuzzy
// matching only applies to controlled vocabularies; open lists match exactly
// or not at all.
func Find(value string, concepts []schema.Concept, controlled bool) *schema.Concept {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	// Exact, case-insensitive, against label and altLabels.
	for i := range concepts {
		if strings.EqualFold(value, concepts[i].Label) {
			return &concepts[i]
		}
		for _, alt := range concepts[i].AltLabels {
			if strings.EqualFold(value, alt) {
				return &concepts[i]
			}
		}
	}

	// Normalized comparison.
	norm := Normalize(value)
	for i := range concepts {
		if norm == Normalize(concepts[i].Label) {
			return &concepts[i]
		}
		for _, alt := range concepts[i].AltLabels {
			if norm == Normalize(alt) {
				return &concepts[i]
			}
		}
	}

	if !controlled {
		return nil
	}

	// Fuzzy: minimum edit distance across all labels, accepted within the
	// length-scaled tolerance.
	limit := Tolerance(value)
	best := -1
	bestDist := 0
	for i := range concepts {
		dist := Distance(norm, Normalize(concepts[i].Label))
		for _, alt := range concepts[i].AltLabels {
			if d := Distance(norm, Normalize(alt)); d < dist {
				dist = d
			}
		}
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best >= 0 && bestDist <= limit {
		return &concepts[best]
	}
	return nil
}

// Match resolves value to a concept label. For controlled vocabularies a
// miss returns ok=false and the caller must clear the value; for open
// vocabularies the input passes through unchanged.
func Match(value string, concepts []schema.Concept, controlled bool) (string, bool) {
	if c := Find(value, concepts, controlled); c != nil {
		return c.Label, true
	}
	if controlled {
		return "", false
	}
	return value, true
}

// MatchAll resolves a list of values element-wise. For controlled
// vocabularies unmatched elements are dropped.
func MatchAll(values []string, concepts []schema.Concept, controlled bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if label, ok := Match(v, concepts, controlled); ok {
			out = append(out, label)
		}
	}
	return out
}

// Distance computes the Levenshtein edit distance between two strings.
func Distance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// Create matrix
	matrix := make([][]int, len(r1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(r2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	// Fill matrix
	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(r1)][len(r2)]
}

// Similarity scores two strings from 0.0 (disjoint) to 1.0 (identical)
// based on edit distance over the longer length.
func Similarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))
	if s1 == s2 {
		return 1.0
	}
	maxLen := math.Max(float64(len(s1)), float64(len(s2)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(s1, s2))/maxLen
}
