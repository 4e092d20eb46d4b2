package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metaextract",
		Short: "Schema-driven metadata extraction for educational resources",
		Long: `Metaextract fills structured metadata schemas from free-form resource
descriptions using LLMs.

It detects the content type of a text, extracts and normalizes every field of
the matching schema, resolves controlled vocabularies, geocodes locations, and
assembles the result into a repository-ready metadata document.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}
