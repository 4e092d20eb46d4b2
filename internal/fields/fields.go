// Package fields holds the per-field runtime state of one extraction
// session: lifecycle status, current value, confidence, and the sub-field
// tree of structured fields. Observers only ever see immutable snapshots.
package fields

import (
	"strings"

	"github.com/openeduhub/metaextract/internal/schema"
)

// Status is the lifecycle state of a field.
type Status string

const (
	StatusEmpty      Status = "empty"
	StatusExtracting Status = "extracting"
	StatusFilled     Status = "filled"
	StatusError      Status = "error"
)

// State is the mutable runtime record of one field. Sub-field states carry a
// dotted Path (e.g. "address.streetAddress") and, inside repeated
// structures, an array Index; top-level states have Path == "" and
// Index == -1.
type State struct {
	Field      *schema.Field
	Status     Status
	Value      any
	Confidence float64
	Err        string
	Path       string
	Index      int
	Subs       []*State
}

// NewState creates an empty state for a field definition.
func NewState(f *schema.Field) *State {
	return &State{Field: f, Status: StatusEmpty, Index: -1}
}

// Parent reports whether the field is a shaped parent. Parents are excluded
// from direct value editing; their value is reconstructed from sub-fields at
// export time.
func (s *State) Parent() bool {
	return s.Field != nil && s.Field.Shaped()
}

// Leaf returns the last segment of a sub-field path.
func (s *State) Leaf() string {
	if i := strings.LastIndexByte(s.Path, '.'); i >= 0 {
		return s.Path[i+1:]
	}
	return s.Path
}

// clone copies a state tree for snapshots.
func (s *State) clone() State {
	out := *s
	if len(s.Subs) > 0 {
		out.Subs = make([]*State, len(s.Subs))
		for i, sub := range s.Subs {
			c := sub.clone()
			out.Subs[i] = &c
		}
	}
	return out
}

// Present reports whether a value counts as filled: not nil, not a blank
// string, and for arrays at least one non-empty element.
func Present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []string:
		for _, e := range t {
			if strings.TrimSpace(e) != "" {
				return true
			}
		}
		return false
	case []any:
		for _, e := range t {
			if Present(e) {
				return true
			}
		}
		return false
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
