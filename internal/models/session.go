package models

import "time"

// ExtractionSession represents one metadata extraction session
type ExtractionSession struct {
	ID         string         `json:"id"`
	Text       string         `json:"text,omitempty"`
	Schema     string         `json:"schema,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Status     string         `json:"status"`
	Progress   float64        `json:"progress"`
	Fields     []FieldView    `json:"fields"`
	Document   map[string]any `json:"document,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Session lifecycle states
const (
	SessionRunning = "running"
	SessionDone    = "done"
)

// FieldView is the API rendering of one field's state
type FieldView struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Group      string    `json:"group,omitempty"`
	Status     string    `json:"status"`
	Value      any       `json:"value,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
	Subs       []SubView `json:"subs,omitempty"`
}

// SubView is the API rendering of one sub-field of a structured field
type SubView struct {
	Path   string `json:"path"`
	Index  int    `json:"index"`
	Status string `json:"status"`
	Value  any    `json:"value,omitempty"`
}
