// Package schema models the metadata profiles consumed by the extraction
// pipeline: field definitions, groups, controlled vocabularies, and the
// nested shapes of structured fields. One schema document describes one
// content type (event, learning material, organization, ...).
package schema

// Datatype values a field definition may declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeURI     = "uri"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Vocabulary types that make a concept list controlled.
const (
	VocabClosed = "closed"
	VocabSKOS   = "skos"
)

// Concept is one entry of a vocabulary.
type Concept struct {
	Label      string   `json:"label"`
	AltLabels  []string `json:"altLabels,omitempty"`
	URI        string   `json:"uri,omitempty"`
	SchemaFile string   `json:"schema_file,omitempty"`
}

// Vocabulary is a list of concepts a field value is matched against.
type Vocabulary struct {
	Type     string    `json:"type,omitempty"`
	Concepts []Concept `json:"concepts"`
}

// Controlled reports whether only listed labels are valid values.
// Anything that is not closed or skos is an advisory, open list.
func (v *Vocabulary) Controlled() bool {
	if v == nil {
		return false
	}
	return v.Type == VocabClosed || v.Type == VocabSKOS
}

// Shape declares one variant of a structured field's nested object.
// Type is the optional @type discriminant; Properties are the declared
// sub-field names.
type Shape struct {
	Type       string   `json:"@type,omitempty"`
	Properties []string `json:"properties"`
}

// Items describes the structure of object-typed field values, either as a
// single shape or as a list of variants resolved at expansion time.
type Items struct {
	Shape    *Shape  `json:"shape,omitempty"`
	Variants []Shape `json:"variants,omitempty"`
}

// System holds the machine-facing part of a field definition.
type System struct {
	Datatype   string      `json:"datatype"`
	Multiple   bool        `json:"multiple,omitempty"`
	Required   bool        `json:"required,omitempty"`
	AIFillable *bool       `json:"ai_fillable,omitempty"`
	AskUser    *bool       `json:"ask_user,omitempty"`
	Vocabulary *Vocabulary `json:"vocabulary,omitempty"`
	Validation string      `json:"validation,omitempty"`
	Items      *Items      `json:"items,omitempty"`
}

// Prompt holds the human/LLM-facing part of a field definition.
type Prompt struct {
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Field is one metadata field of a schema document.
type Field struct {
	ID     string `json:"id"`
	Group  string `json:"group,omitempty"`
	System System `json:"system"`
	Prompt Prompt `json:"prompt"`
}

// Group is a display grouping of fields.
type Group struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Document is one loaded schema file.
type Document struct {
	ID             string         `json:"id,omitempty"`
	Description    string         `json:"description,omitempty"`
	Fields         []Field        `json:"fields"`
	Groups         []Group        `json:"groups,omitempty"`
	OutputTemplate map[string]any `json:"output_template,omitempty"`
}

// AIFillable defaults to true when the schema is silent.
func (f *Field) AIFillable() bool {
	return f.System.AIFillable == nil || *f.System.AIFillable
}

// AskUser defaults to true when the schema is silent.
func (f *Field) AskUser() bool {
	return f.System.AskUser == nil || *f.System.AskUser
}

// Eligible reports whether the field takes part in LLM extraction.
func (f *Field) Eligible() bool {
	return f.AIFillable() && f.AskUser()
}

// Controlled reports whether the field is backed by a controlled vocabulary.
func (f *Field) Controlled() bool {
	return f.System.Vocabulary.Controlled()
}

// Concepts returns the field's vocabulary concepts, or nil.
func (f *Field) Concepts() []Concept {
	if f.System.Vocabulary == nil {
		return nil
	}
	return f.System.Vocabulary.Concepts
}

// Shaped reports whether the field expands into sub-fields.
func (f *Field) Shaped() bool {
	return f.System.Items != nil && (f.System.Items.Shape != nil || len(f.System.Items.Variants) > 0)
}

// Variants returns the declared shape variants, folding a single shape into
// a one-element variant list.
func (f *Field) Variants() []Shape {
	if f.System.Items == nil {
		return nil
	}
	if len(f.System.Items.Variants) > 0 {
		return f.System.Items.Variants
	}
	if f.System.Items.Shape != nil {
		return []Shape{*f.System.Items.Shape}
	}
	return nil
}

// FieldByID returns the field with the given id, or nil.
func (d *Document) FieldByID(id string) *Field {
	for i := range d.Fields {
		if d.Fields[i].ID == id {
			return &d.Fields[i]
		}
	}
	return nil
}
