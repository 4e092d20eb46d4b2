package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openeduhub/metaextract/internal/geocode"
	"github.com/openeduhub/metaextract/internal/llm"
	"github.com/openeduhub/metaextract/internal/pipeline"
	"github.com/openeduhub/metaextract/internal/schema"
)

// pipelineFlags are the flags shared by every command that runs extractions.
type pipelineFlags struct {
	schemasDir        string
	provider          string
	model             string
	temperature       float64
	geocoderURL       string
	noGeocode         bool
	maxWorkers        int
	minTypeConfidence float64
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.schemasDir, "schemas", "schemas", "Directory containing schema JSON files")
	cmd.Flags().StringVar(&f.provider, "provider", envOr("EXTRACT_PROVIDER", "openai"), "LLM provider (openai, gemini, ollama)")
	cmd.Flags().StringVar(&f.model, "model", envOr("EXTRACT_MODEL", "gpt-4o-mini"), "Model name")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0.1, "Sampling temperature")
	cmd.Flags().StringVar(&f.geocoderURL, "geocoder", envOr("GEOCODER_URL", geocode.DefaultBaseURL), "Geocoding service base URL")
	cmd.Flags().BoolVar(&f.noGeocode, "no-geocode", false, "Disable geocoding enrichment")
	cmd.Flags().IntVar(&f.maxWorkers, "max-workers", 0, "Max concurrent extraction tasks (0 = default)")
	cmd.Flags().Float64Var(&f.minTypeConfidence, "min-type-confidence", pipeline.DefaultMinTypeConfidence,
		"Minimum confidence to accept a detected content type")
}

// build wires the repository and a pipeline factory from the flags. Each
// factory call yields an independent session pipeline sharing the provider
// and schema cache.
func (f *pipelineFlags) build(logger *slog.Logger) (*schema.Repository, func() *pipeline.Pipeline, error) {
	if _, err := os.Stat(f.schemasDir); err != nil {
		return nil, nil, fmt.Errorf("schema directory %s not usable: %w", f.schemasDir, err)
	}
	schemas := schema.NewRepository(f.schemasDir, logger)

	provider, err := llm.ForName(f.provider)
	if err != nil {
		return nil, nil, err
	}
	gateway := llm.NewGateway(provider, llm.Config{
		Model:       f.model,
		Temperature: f.temperature,
	}, llm.DefaultPolicy(), logger)

	var geo *geocode.Client
	if !f.noGeocode {
		geo = geocode.NewClient(f.geocoderURL, logger)
	}

	opts := pipeline.Options{
		MaxWorkers:        f.maxWorkers,
		MinTypeConfidence: f.minTypeConfidence,
	}
	factory := func() *pipeline.Pipeline {
		return pipeline.New(schemas, gateway, geo, logger, opts)
	}
	return schemas, factory, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
