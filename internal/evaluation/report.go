package evaluation

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Report aggregates one evaluation run.
type Report struct {
	GeneratedAt time.Time          `yaml:"generated_at"`
	Dataset     string             `yaml:"dataset"`
	Provider    string             `yaml:"provider,omitempty"`
	Model       string             `yaml:"model,omitempty"`
	Records     int                `yaml:"records"`
	Failures    int                `yaml:"failures"`
	MeanScore   float64            `yaml:"mean_score"`
	FieldMeans  map[string]float64 `yaml:"field_means"`
	Results     []RecordResult     `yaml:"results"`
}

// BuildReport aggregates per-record results into a report.
func BuildReport(dataset, provider, model string, results []RecordResult) *Report {
	report := &Report{
		GeneratedAt: time.Now(),
		Dataset:     dataset,
		Provider:    provider,
		Model:       model,
		Records:     len(results),
		FieldMeans:  make(map[string]float64),
		Results:     results,
	}

	fieldTotals := make(map[string]float64)
	fieldCounts := make(map[string]int)
	var total float64
	for _, result := range results {
		if result.Err != "" {
			report.Failures++
		}
		total += result.Score
		if result.Comparison == nil {
			continue
		}
		for field, score := range result.Comparison.FieldScores {
			fieldTotals[field] += score
			fieldCounts[field]++
		}
	}
	if len(results) > 0 {
		report.MeanScore = total / float64(len(results))
	}
	for field, sum := range fieldTotals {
		report.FieldMeans[field] = sum / float64(fieldCounts[field])
	}
	return report
}

// WriteYAML writes the report to path.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WeakestFields lists the n lowest-scoring fields, worst first.
func (r *Report) WeakestFields(n int) []string {
	fields := make([]string, 0, len(r.FieldMeans))
	for field := range r.FieldMeans {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if r.FieldMeans[fields[i]] != r.FieldMeans[fields[j]] {
			return r.FieldMeans[fields[i]] < r.FieldMeans[fields[j]]
		}
		return fields[i] < fields[j]
	})
	if n > 0 && len(fields) > n {
		fields = fields[:n]
	}
	return fields
}
