// Package pipeline orchestrates one extraction session: core schema load,
// content-type detection, pooled per-field extraction, normalization with one
// strict vocabulary retry, shape expansion, and geocoding enrichment. Field
// state lives in a fields.Collection; every transition publishes a snapshot.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openeduhub/metaextract/internal/fields"
	"github.com/openeduhub/metaextract/internal/geocode"
	"github.com/openeduhub/metaextract/internal/llm"
	"github.com/openeduhub/metaextract/internal/normalize"
	"github.com/openeduhub/metaextract/internal/pool"
	"github.com/openeduhub/metaextract/internal/reconcile"
	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/shape"
)

// DefaultMinTypeConfidence is the detection confidence below which the
// content-type suggestion is discarded.
const DefaultMinTypeConfidence = 0.5

// Task priorities. Required fields jump the queue.
const (
	priorityRequired = 10
	priorityOptional = 5
)

// Invoker is the slice of the LLM gateway the pipeline needs.
type Invoker interface {
	Invoke(ctx context.Context, messages []llm.Message) (string, error)
}

// Options tune a pipeline.
type Options struct {
	// MaxWorkers bounds concurrent extraction tasks. <= 0 uses the pool
	// default.
	MaxWorkers int
	// MinTypeConfidence gates content-type detection. <= 0 uses
	// DefaultMinTypeConfidence.
	MinTypeConfidence float64
}

// Detection is the model's content-type verdict.
type Detection struct {
	Schema     string  `json:"schema"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Pipeline runs extraction sessions against one schema repository.
type Pipeline struct {
	schemas *schema.Repository
	gw      Invoker
	norm    *normalize.Normalizer
	geo     *geocode.Client
	logger  *slog.Logger
	opts    Options

	mu        sync.Mutex
	col       *fields.Collection
	docs      []*schema.Document
	pool      *pool.Pool
	observers []func(fields.Snapshot)
	detected  *Detection
}

// New creates a pipeline. geo may be nil to disable geocoding enrichment.
func New(schemas *schema.Repository, gw Invoker, geo *geocode.Client, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinTypeConfidence <= 0 {
		opts.MinTypeConfidence = DefaultMinTypeConfidence
	}
	p := &Pipeline{
		schemas: schemas,
		gw:      gw,
		norm:    normalize.New(gw, logger),
		geo:     geo,
		logger:  logger,
		opts:    opts,
	}
	p.reset()
	return p
}

// Subscribe registers an observer for state snapshots. Observers survive
// Reset.
func (p *Pipeline) Subscribe(fn func(fields.Snapshot)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	if p.col != nil {
		p.col.Subscribe(fn)
	}
	p.mu.Unlock()
}

// Snapshot returns the current field state view.
func (p *Pipeline) Snapshot() fields.Snapshot {
	p.mu.Lock()
	col := p.col
	p.mu.Unlock()
	return col.Snapshot()
}

// Detected returns the accepted content-type verdict of the current session,
// or nil.
func (p *Pipeline) Detected() *Detection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detected
}

// Reset discards the current session: queued tasks are dropped, field state
// is replaced wholesale. In-flight task results land in the old collection
// and are never seen again.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	if p.pool != nil {
		p.pool.Clear()
	}
	p.reset()
	p.mu.Unlock()
}

// reset installs a fresh collection and pool. The old collection keeps
// absorbing in-flight writes but stops publishing. Callers other than New
// hold p.mu.
func (p *Pipeline) reset() {
	if p.col != nil {
		p.col.DetachObservers()
	}
	col := fields.NewCollection()
	for _, fn := range p.observers {
		col.Subscribe(fn)
	}
	p.col = col
	p.docs = nil
	p.detected = nil
	p.pool = pool.New(p.runTask(col), p.opts.MaxWorkers, p.logger)
}

// Run extracts metadata from text and returns the reconciled document. The
// session state remains available afterwards for edits and snapshots.
func (p *Pipeline) Run(ctx context.Context, text string) (map[string]any, error) {
	core, err := p.schemas.Core()
	if err != nil {
		return nil, fmt.Errorf("failed to load core schema: %w", err)
	}

	p.mu.Lock()
	p.reset()
	col := p.col
	jobs := p.pool
	p.docs = []*schema.Document{core}
	p.mu.Unlock()

	addEligible(col, core)

	// Content-type detection extends the field set before extraction starts.
	// Detection failures degrade to core-only extraction.
	typeField := contentTypeField(core)
	if det, doc := p.detect(ctx, text); doc != nil {
		p.mu.Lock()
		p.docs = append(p.docs, doc)
		p.detected = det
		p.mu.Unlock()

		addEligible(col, doc)
		p.prefillContentType(col, typeField, det.Schema)
	}

	p.extractAll(ctx, col, jobs, text)
	p.enrichLocations(ctx, col)

	return p.Document(), nil
}

// Document reconciles the current field state into the output document.
func (p *Pipeline) Document() map[string]any {
	p.mu.Lock()
	col, docs := p.col, p.docs
	p.mu.Unlock()
	return reconcile.Build(col, docs...)
}

// addEligible registers empty states for every extractable field of doc that
// is not tracked yet.
func addEligible(col *fields.Collection, doc *schema.Document) {
	var states []*fields.State
	for i := range doc.Fields {
		f := &doc.Fields[i]
		if !f.Eligible() || col.Has(f.ID) {
			continue
		}
		states = append(states, fields.NewState(f))
	}
	col.Add(states...)
}

// contentTypeField finds the core field whose vocabulary concepts point at
// content-type schema files.
func contentTypeField(core *schema.Document) *schema.Field {
	for i := range core.Fields {
		for _, c := range core.Fields[i].Concepts() {
			if c.SchemaFile != "" {
				return &core.Fields[i]
			}
		}
	}
	return nil
}

// detect classifies the text against the available content-type schemas.
// Low-confidence or failed detection returns nil without blocking the run.
func (p *Pipeline) detect(ctx context.Context, text string) (*Detection, *schema.Document) {
	types, err := p.schemas.ContentTypes()
	if err != nil {
		p.logger.Warn("Content-type listing failed", "error", err)
		return nil, nil
	}
	if len(types) == 0 || p.gw == nil {
		return nil, nil
	}

	response, err := p.gw.Invoke(ctx, []llm.Message{
		{Role: "user", Content: buildDetectionPrompt(text, types)},
	})
	if err != nil {
		p.logger.Warn("Content-type detection failed", "error", err)
		return nil, nil
	}

	var det Detection
	if err := llm.DecodeJSONObject(response, &det); err != nil {
		p.logger.Warn("Content-type detection returned no JSON", "error", err)
		return nil, nil
	}
	if det.Confidence <= p.opts.MinTypeConfidence {
		p.logger.Info("Content-type suggestion below threshold",
			"schema", det.Schema, "confidence", det.Confidence, "threshold", p.opts.MinTypeConfidence)
		return nil, nil
	}

	file := det.Schema
	for _, t := range types {
		if t.Name == det.Schema {
			file = t.File
			break
		}
	}
	doc, err := p.schemas.Load(file)
	if err != nil {
		p.logger.Warn("Detected schema could not be loaded", "schema", det.Schema, "error", err)
		return nil, nil
	}

	p.logger.Info("Content type detected",
		"schema", det.Schema, "confidence", det.Confidence, "reason", det.Reason)
	return &det, doc
}

// prefillContentType fills the content-type field with the vocabulary concept
// matching the detected schema, so the model is never asked what detection
// already answered.
func (p *Pipeline) prefillContentType(col *fields.Collection, f *schema.Field, detected string) {
	if f == nil || !col.Has(f.ID) {
		return
	}
	for _, c := range f.Concepts() {
		name := c.SchemaFile
		if len(name) > 5 && name[len(name)-5:] == ".json" {
			name = name[:len(name)-5]
		}
		if name == detected || c.Label == detected {
			col.Fill(f.ID, c.Label, 1)
			return
		}
	}
}

// extractAll submits one task per empty eligible field and commits results as
// they arrive.
func (p *Pipeline) extractAll(ctx context.Context, col *fields.Collection, jobs *pool.Pool, text string) {
	type pending struct {
		field *schema.Field
		ch    <-chan pool.Result
	}

	var submitted []pending
	col.Each(func(s *fields.State) {
		if s.Status != fields.StatusEmpty {
			return
		}
		priority := priorityOptional
		if s.Field.System.Required {
			priority = priorityRequired
		}
		submitted = append(submitted, pending{
			field: s.Field,
			ch: jobs.Submit(ctx, pool.Task{
				Field:    s.Field,
				Text:     text,
				Priority: priority,
			}),
		})
	})

	for _, pn := range submitted {
		result := <-pn.ch
		p.commit(col, pn.field, result)
	}
}

// runTask builds the pool runner for one session's collection: extract,
// normalize, retry once for controlled vocabularies, expand shapes. The
// returned value is the committed field value; nil means the field stays
// empty.
func (p *Pipeline) runTask(col *fields.Collection) pool.RunFunc {
	return func(ctx context.Context, task pool.Task) (any, error) {
		f := task.Field
		col.SetExtracting(f.ID)

		raw, err := p.extractValue(ctx, buildExtractionPrompt(f, task.Text))
		if err != nil {
			return nil, err
		}
		if !fields.Present(raw) {
			return nil, nil
		}

		value := p.norm.Normalize(ctx, f, raw)
		if normalize.ValidAgainstVocabulary(f, value) {
			return value, nil
		}

		// Exactly one stricter attempt for controlled vocabularies.
		raw, err = p.extractValue(ctx, buildStrictVocabularyPrompt(f, task.Text))
		if err != nil {
			return nil, err
		}
		if fields.Present(raw) {
			value = p.norm.Normalize(ctx, f, raw)
			if normalize.ValidAgainstVocabulary(f, value) {
				return value, nil
			}
		}

		p.logger.Warn("Value rejected by vocabulary after retry", "field", f.ID)
		return nil, nil
	}
}

// extractValue runs one extraction prompt and unwraps the {"value": ...}
// envelope.
func (p *Pipeline) extractValue(ctx context.Context, prompt string) (any, error) {
	if p.gw == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	response, err := p.gw.Invoke(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}
	var out struct {
		Value any `json:"value"`
	}
	if err := llm.DecodeJSONObject(response, &out); err != nil {
		return nil, fmt.Errorf("unparseable extraction response: %w", err)
	}
	return out.Value, nil
}

// commit applies one task result to the collection. Results arriving after
// the session was replaced are discarded.
func (p *Pipeline) commit(col *fields.Collection, f *schema.Field, result pool.Result) {
	p.mu.Lock()
	current := p.col == col
	p.mu.Unlock()
	if !current {
		return
	}

	if result.Err != nil {
		col.SetError(f.ID, result.Err.Error())
		return
	}
	if result.Confidence == 0 || !fields.Present(result.Value) {
		col.Clear(f.ID)
		return
	}

	col.Fill(f.ID, result.Value, result.Confidence)
	if f.Shaped() {
		col.SetSubs(f.ID, shape.Expand(f, result.Value))
	}
}

// EditField applies a user-supplied value to a field: normalized, validated
// against the vocabulary, and expanded when shaped. A rejected value clears
// the field.
func (p *Pipeline) EditField(ctx context.Context, id string, value any) error {
	p.mu.Lock()
	col, docs := p.col, p.docs
	p.mu.Unlock()

	f := findField(docs, id)
	if f == nil || !col.Has(id) {
		return fmt.Errorf("unknown field: %s", id)
	}

	if !fields.Present(value) {
		col.Clear(id)
		return nil
	}

	normalized := p.norm.Normalize(ctx, f, value)
	if !normalize.ValidAgainstVocabulary(f, normalized) {
		col.Clear(id)
		return fmt.Errorf("value not in vocabulary for field %s", id)
	}

	col.Fill(id, normalized, 1)
	if f.Shaped() {
		col.SetSubs(id, shape.Expand(f, normalized))
	}
	return nil
}

// EditSub applies a user-supplied value to one sub-field, then re-runs
// geocoding for the parent when an address component changed.
func (p *Pipeline) EditSub(ctx context.Context, id, path string, index int, value any) error {
	p.mu.Lock()
	col := p.col
	p.mu.Unlock()

	if !col.FillSub(id, path, index, value) {
		return fmt.Errorf("unknown sub-field: %s %s", id, path)
	}
	if isAddressPath(path) {
		// The old coordinates describe the old address.
		clearCoordinates(col, id, index)
		p.enrichLocations(ctx, col)
	}
	return nil
}

// clearCoordinates empties the coordinate leaves of one parent object so the
// next geocoding pass recomputes them.
func clearCoordinates(col *fields.Collection, id string, index int) {
	var paths []string
	col.Each(func(s *fields.State) {
		if s.Field.ID != id {
			return
		}
		for _, sub := range s.Subs {
			if sub.Index != index {
				continue
			}
			switch classifyLeaf(sub.Path) {
			case leafLatitude, leafLongitude:
				paths = append(paths, sub.Path)
			}
		}
	})
	for _, path := range paths {
		col.FillSub(id, path, index, nil)
	}
}

func findField(docs []*schema.Document, id string) *schema.Field {
	for _, doc := range docs {
		if f := doc.FieldByID(id); f != nil {
			return f
		}
	}
	return nil
}
