// Package normalize turns raw extracted or user-edited values into the
// repository's canonical forms. Local rules run synchronously; when they are
// insufficient the normalizer falls back to the LLM gateway. Normalization
// never returns an error to its caller — the worst case is the original
// value unchanged.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/vocab"
)

// Result is the outcome of a local normalization attempt. OK means a rule
// claimed the value; Value may still be nil when a controlled vocabulary
// rejected it.
type Result struct {
	OK    bool
	Value any
}

var booleanWords = map[string]bool{
	"ja": true, "yes": true, "wahr": true, "true": true, "1": true,
	"nein": false, "no": false, "falsch": false, "false": false, "0": false,
}

// numberWords resolves the common German number words. Compound or unlisted
// words stay unresolved so remote normalization gets a chance.
var numberWords = map[string]float64{
	"null": 0, "eins": 1, "zwei": 2, "drei": 3, "vier": 4,
	"fünf": 5, "sechs": 6, "sieben": 7, "acht": 8, "neun": 9,
	"zehn": 10, "elf": 11, "zwölf": 12, "zwanzig": 20, "dreißig": 30,
	"vierzig": 40, "fünfzig": 50, "sechzig": 60, "siebzig": 70,
	"achtzig": 80, "neunzig": 90, "hundert": 100, "tausend": 1000,
	"zweitausend": 2000,
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are tried in order after the ISO check. Day-first variants
// come before year-first ones.
var dateLayouts = []string{
	"2.1.2006",
	"2/1/2006",
	"2-1-2006",
	"2006.1.2",
	"2006/1/2",
}

var bareDomain = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}(/\S*)?$`)

var dateSeparators = regexp.MustCompile(`[./-]`)

// Local applies the per-datatype rules in fixed order, first match wins:
// boolean words, vocabulary, numbers (incl. German number words), dates,
// URLs, geo-coordinates.
func Local(f *schema.Field, raw any) Result {
	// 1. Boolean.
	if f.System.Datatype == schema.TypeBoolean {
		if b, ok := raw.(bool); ok {
			return Result{OK: true, Value: b}
		}
		if s, ok := raw.(string); ok {
			if b, ok := booleanWords[strings.ToLower(strings.TrimSpace(s))]; ok {
				return Result{OK: true, Value: b}
			}
		}
	}

	// 2. Vocabulary. A non-null match counts as success even if unchanged;
	// a controlled miss yields a nil value the caller must clear.
	if concepts := f.Concepts(); len(concepts) > 0 {
		return matchVocabulary(raw, concepts, f.Controlled())
	}

	switch f.System.Datatype {
	case schema.TypeNumber, schema.TypeInteger:
		return localNumber(f, raw)
	case schema.TypeDate:
		return localDate(raw)
	case schema.TypeURI:
		return localURL(raw)
	}

	// 6. Geo-coordinates, keyed by field id.
	if res, ok := localCoordinate(f.ID, raw); ok {
		return res
	}

	return Result{}
}

func matchVocabulary(raw any, concepts []schema.Concept, controlled bool) Result {
	switch t := raw.(type) {
	case string:
		label, ok := vocab.Match(t, concepts, controlled)
		if !ok {
			return Result{OK: true, Value: nil}
		}
		return Result{OK: true, Value: label}
	case []string:
		return matchVocabularySlice(t, concepts, controlled)
	case []any:
		values := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok {
				values = append(values, s)
			}
		}
		return matchVocabularySlice(values, concepts, controlled)
	default:
		return Result{}
	}
}

func matchVocabularySlice(values []string, concepts []schema.Concept, controlled bool) Result {
	matched := vocab.MatchAll(values, concepts, controlled)
	if controlled && len(matched) == 0 {
		return Result{OK: true, Value: nil}
	}
	out := make([]any, len(matched))
	for i, v := range matched {
		out[i] = v
	}
	return Result{OK: true, Value: out}
}

func localNumber(f *schema.Field, raw any) Result {
	// Coordinate fields get range validation and rounding instead of the
	// plain numeric parse.
	if res, ok := localCoordinate(f.ID, raw); ok {
		return res
	}

	integer := f.System.Datatype == schema.TypeInteger

	switch t := raw.(type) {
	case float64:
		return Result{OK: true, Value: numberValue(t, integer)}
	case int:
		return Result{OK: true, Value: numberValue(float64(t), integer)}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
			return Result{OK: true, Value: numberValue(n, integer)}
		}
		if n, ok := numberWords[strings.ToLower(s)]; ok {
			return Result{OK: true, Value: numberValue(n, integer)}
		}
	}
	return Result{}
}

func numberValue(n float64, integer bool) any {
	if integer {
		return int(n)
	}
	return n
}

func localDate(raw any) Result {
	s, ok := raw.(string)
	if !ok {
		return Result{}
	}
	s = strings.TrimSpace(s)

	if isoDate.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return Result{OK: true, Value: s}
		}
		return Result{}
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Reject inputs whose components were reinterpreted under the
		// wrong layout; a correct parse round-trips.
		if t.Format(layout) != canonical(s) {
			continue
		}
		return Result{OK: true, Value: t.Format("2006-01-02")}
	}
	return Result{}
}

// canonical strips leading zeroes from day/month components so "05.09.2026"
// round-trips against the non-padded layouts.
func canonical(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '/' || r == '-'
	})
	for i, p := range parts {
		if len(p) < 4 {
			parts[i] = strings.TrimLeft(p, "0")
			if parts[i] == "" {
				parts[i] = "0"
			}
		}
	}
	seps := dateSeparators.FindAllString(s, -1)
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i < len(seps) {
			b.WriteString(seps[i])
		}
	}
	return b.String()
}

func localURL(raw any) Result {
	s, ok := raw.(string)
	if !ok {
		return Result{}
	}
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		return Result{OK: true, Value: s}
	}
	if bareDomain.MatchString(s) {
		return Result{OK: true, Value: "https://" + s}
	}
	return Result{}
}

// coordinatePrecision is the repository's coordinate precision in decimal
// places.
const coordinatePrecision = 7

func localCoordinate(fieldID string, raw any) (Result, bool) {
	id := strings.ToLower(fieldID)
	isLat := strings.Contains(id, "latitude")
	isLon := strings.Contains(id, "longitude")
	if !isLat && !isLon {
		return Result{}, false
	}

	var n float64
	switch t := raw.(type) {
	case float64:
		n = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return Result{}, true
		}
		n = parsed
	default:
		return Result{}, true
	}

	limit := 180.0
	if isLat {
		limit = 90.0
	}
	if n < -limit || n > limit {
		return Result{}, true
	}
	return Result{OK: true, Value: RoundCoordinate(n)}, true
}

// RoundCoordinate rounds to the repository's coordinate precision.
func RoundCoordinate(n float64) float64 {
	factor := math.Pow10(coordinatePrecision)
	return math.Round(n*factor) / factor
}

// formatValue renders a raw value for a normalization prompt.
func formatValue(raw any) string {
	switch t := raw.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
