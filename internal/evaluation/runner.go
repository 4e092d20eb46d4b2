package evaluation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openeduhub/metaextract/internal/pipeline"
)

// RecordResult is the evaluation outcome for one dataset record.
type RecordResult struct {
	ID         string             `json:"id" yaml:"id"`
	Score      float64            `json:"score" yaml:"score"`
	Comparison *ComparisonResult  `json:"comparison" yaml:"comparison"`
	Generated  map[string]any     `json:"generated,omitempty" yaml:"generated,omitempty"`
	Duration   time.Duration      `json:"duration_ns" yaml:"duration_ns"`
	Err        string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Runner evaluates the extraction pipeline against a labeled dataset.
// Records run in parallel, each on its own pipeline instance.
type Runner struct {
	newPipeline func() *pipeline.Pipeline
	concurrency int
	logger      *slog.Logger
}

// NewRunner creates a runner. concurrency <= 0 runs records sequentially.
func NewRunner(newPipeline func() *pipeline.Pipeline, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{newPipeline: newPipeline, concurrency: concurrency, logger: logger}
}

// Run evaluates every record and returns per-record results in dataset
// order. A failed record scores zero; the error text is kept in its result.
func (r *Runner) Run(ctx context.Context, records []Record) ([]RecordResult, error) {
	results := make([]RecordResult, len(records))

	var mu sync.Mutex
	var done int

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, record := range records {
		g.Go(func() error {
			start := time.Now()
			result := RecordResult{ID: record.ID}

			doc, err := r.newPipeline().Run(ctx, record.Text)
			if err != nil {
				result.Err = err.Error()
				result.Comparison = &ComparisonResult{FieldScores: map[string]float64{}}
			} else {
				result.Comparison = CompareDocuments(record.Expected, doc)
				result.Score = result.Comparison.OverallScore
				result.Generated = doc
			}
			result.Duration = time.Since(start)
			results[i] = result

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			r.logger.Info("Record evaluated",
				"record", record.ID, "score", result.Score,
				"progress", n, "total", len(records))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
