// Package reconcile assembles the final metadata document from field
// states: a flat mapping keyed by parent field ids only, with
// vocabulary-backed values shaped as {label, uri} pairs and structured
// fields reconstructed into nested objects.
package reconcile

import (
	"github.com/openeduhub/metaextract/internal/fields"
	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/shape"
	"github.com/openeduhub/metaextract/internal/vocab"
)

// LabeledValue is the repository shape of a vocabulary-backed value.
type LabeledValue struct {
	Label string `json:"label"`
	URI   string `json:"uri,omitempty"`
}

// Build flattens the collection into one metadata document. The
// output_template of the schema supplies the empty-value skeleton; filled
// fields overwrite their template entries. Sub-field ids never appear as
// top-level keys.
func Build(col *fields.Collection, docs ...*schema.Document) map[string]any {
	out := map[string]any{}
	for _, doc := range docs {
		for k, v := range doc.OutputTemplate {
			out[k] = v
		}
	}

	col.Each(func(s *fields.State) {
		value := Value(s)
		if value == nil {
			return
		}
		out[s.Field.ID] = value
	})

	return out
}

// Value renders one field state into its exportable form, or nil when the
// field holds nothing.
func Value(s *fields.State) any {
	if s.Parent() {
		return shape.Reconstruct(s)
	}

	if s.Status != fields.StatusFilled || !fields.Present(s.Value) {
		return nil
	}

	concepts := s.Field.Concepts()
	if len(concepts) == 0 {
		return s.Value
	}

	switch t := s.Value.(type) {
	case string:
		return labeled(t, concepts)
	case []any:
		out := make([]any, 0, len(t))
		for _, el := range t {
			if label, ok := el.(string); ok {
				out = append(out, labeled(label, concepts))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, label := range t {
			out = append(out, labeled(label, concepts))
		}
		return out
	default:
		return s.Value
	}
}

// labeled pairs a label with its concept URI. Free text on an open
// vocabulary has no URI and exports as a bare label pair.
func labeled(label string, concepts []schema.Concept) LabeledValue {
	if c := vocab.Find(label, concepts, false); c != nil {
		return LabeledValue{Label: c.Label, URI: c.URI}
	}
	return LabeledValue{Label: label}
}
