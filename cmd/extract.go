package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var inputFile string
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract metadata from a text and print the document",
		Long: `Runs one extraction session against the given resource text and prints
the assembled metadata document as JSON.

The text is taken from the argument, from --file, or from stdin.`,
		Example: `  # Extract from an argument
  metaextract extract "Workshop zur digitalen Bildung am 15.9.2026 in Berlin"

  # Extract from a file
  metaextract extract --file beschreibung.txt

  # Extract from stdin
  cat beschreibung.txt | metaextract extract`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, inputFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger := slog.Default()
			_, newPipeline, err := flags.build(logger)
			if err != nil {
				return err
			}

			p := newPipeline()
			doc, err := p.Run(cmd.Context(), text)
			if err != nil {
				return err
			}
			if det := p.Detected(); det != nil {
				logger.Info("Content type detected", "schema", det.Schema, "confidence", det.Confidence)
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(doc)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the resource text from a file")
	flags.register(cmd)

	return cmd
}

func readInput(args []string, inputFile string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		text = string(data)
	case len(args) == 1:
		text = args[0]
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no input text given")
	}
	return text, nil
}
