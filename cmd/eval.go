package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openeduhub/metaextract/internal/evaluation"
)

func newEvalCmd() *cobra.Command {
	var (
		dataset     string
		report      string
		limit       int
		concurrency int
	)
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate extraction accuracy against a labeled dataset",
		Long: `Runs the extraction pipeline over a labeled dataset (JSONL or Parquet)
and scores each generated document against its expected metadata.

The per-record and aggregate scores are written as a YAML report.`,
		Example: `  # Evaluate 50 records with 4 parallel sessions
  metaextract eval --dataset fixtures.jsonl --limit 50 --concurrency 4

  # Write the report to a custom path
  metaextract eval --dataset fixtures.parquet --report results.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			_, newPipeline, err := flags.build(logger)
			if err != nil {
				return err
			}

			records, err := evaluation.NewLoader(dataset, logger).LoadSample(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("dataset %s contains no records", dataset)
			}
			logger.Info("Evaluation started",
				"dataset", dataset, "records", len(records), "concurrency", concurrency)

			runner := evaluation.NewRunner(newPipeline, concurrency, logger)
			results, err := runner.Run(cmd.Context(), records)
			if err != nil {
				return err
			}

			summary := evaluation.BuildReport(dataset, flags.provider, flags.model, results)
			if err := summary.WriteYAML(report); err != nil {
				return err
			}

			logger.Info("Evaluation finished",
				"mean_score", summary.MeanScore,
				"failures", summary.Failures,
				"weakest_fields", summary.WeakestFields(3),
				"report", report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset file (.jsonl or .parquet)")
	cmd.Flags().StringVar(&report, "report", "eval-report.yaml", "Report output path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Evaluate at most N records (0 = all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Parallel extraction sessions")
	_ = cmd.MarkFlagRequired("dataset")
	flags.register(cmd)

	return cmd
}
