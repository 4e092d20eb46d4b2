// Package shape expands structured field values into sub-field states and
// reconstructs parent objects from them. Variants are resolved by the @type
// discriminant when present, otherwise by best property-name overlap.
package shape

import (
	"strings"

	"github.com/openeduhub/metaextract/internal/fields"
	"github.com/openeduhub/metaextract/internal/schema"
)

// Resolve picks the variant matching obj. A variant whose @type equals the
// object's "@type" wins outright; otherwise the variant sharing the most
// property names with the object is chosen. Returns nil when no variant
// shares any property.
func Resolve(variants []schema.Shape, obj map[string]any) *schema.Shape {
	if len(variants) == 0 {
		return nil
	}

	if typ, ok := obj["@type"].(string); ok && typ != "" {
		for i := range variants {
			if strings.EqualFold(variants[i].Type, typ) {
				return &variants[i]
			}
		}
	}

	best := -1
	bestOverlap := 0
	for i := range variants {
		overlap := 0
		for _, prop := range variants[i].Properties {
			if _, ok := obj[prop]; ok {
				overlap++
			}
		}
		if overlap > bestOverlap {
			best = i
			bestOverlap = overlap
		}
	}
	if best < 0 {
		return nil
	}
	return &variants[best]
}

// Expand flattens a normalized object (or, for repeated fields, an array of
// objects) into sub-field states for parent field f. Every property the
// resolved variant declares gets a state, present in the value or not, so
// later enrichment can address empty leaves. Dotted paths are rooted at the
// field id: "location.streetAddress".
func Expand(f *schema.Field, value any) []*fields.State {
	variants := f.Variants()

	switch t := value.(type) {
	case map[string]any:
		return expandObject(f, variants, t, -1)
	case []any:
		var subs []*fields.State
		for i, el := range t {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			subs = append(subs, expandObject(f, variants, obj, i)...)
		}
		return subs
	default:
		return nil
	}
}

func expandObject(f *schema.Field, variants []schema.Shape, obj map[string]any, index int) []*fields.State {
	variant := Resolve(variants, obj)
	if variant == nil {
		return nil
	}

	var subs []*fields.State
	for _, prop := range variant.Properties {
		path := f.ID + "." + prop
		subs = append(subs, expandLeaf(f, path, index, obj[prop])...)
	}
	return subs
}

// expandLeaf emits one state per scalar leaf, recursing through nested
// objects with deeper dotted paths.
func expandLeaf(f *schema.Field, path string, index int, value any) []*fields.State {
	if nested, ok := value.(map[string]any); ok {
		var subs []*fields.State
		for key, v := range nested {
			if key == "@type" {
				continue
			}
			subs = append(subs, expandLeaf(f, path+"."+key, index, v)...)
		}
		return subs
	}

	st := &fields.State{
		Field:  f,
		Path:   path,
		Index:  index,
		Status: fields.StatusEmpty,
	}
	if fields.Present(value) {
		st.Value = value
		st.Status = fields.StatusFilled
	}
	return []*fields.State{st}
}

// Reconstruct rebuilds the parent object from a parent state's sub-fields,
// including only present leaves. A parent whose sub-fields carry array
// indexes yields a []any of objects; otherwise a single map. Returns nil
// when nothing is present.
func Reconstruct(parent *fields.State) any {
	if parent == nil || len(parent.Subs) == 0 {
		return nil
	}

	prefix := parent.Field.ID + "."
	single := map[string]any{}
	indexed := map[int]map[string]any{}
	maxIndex := -1

	for _, sub := range parent.Subs {
		if !fields.Present(sub.Value) {
			continue
		}
		path := strings.TrimPrefix(sub.Path, prefix)
		if sub.Index < 0 {
			setPath(single, path, sub.Value)
			continue
		}
		obj, ok := indexed[sub.Index]
		if !ok {
			obj = map[string]any{}
			indexed[sub.Index] = obj
		}
		if sub.Index > maxIndex {
			maxIndex = sub.Index
		}
		setPath(obj, path, sub.Value)
	}

	if maxIndex >= 0 {
		out := make([]any, 0, maxIndex+1)
		for i := 0; i <= maxIndex; i++ {
			if obj, ok := indexed[i]; ok && len(obj) > 0 {
				out = append(out, obj)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	if len(single) == 0 {
		return nil
	}
	return single
}

// setPath writes value into obj at a dotted path, creating intermediate
// objects as needed.
func setPath(obj map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := obj[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			obj[part] = next
		}
		obj = next
	}
	obj[parts[len(parts)-1]] = value
}
