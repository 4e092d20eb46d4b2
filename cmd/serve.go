package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/openeduhub/metaextract/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port string
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the extraction API server",
		Long: `Starts the metadata extraction API on the specified port.

Clients POST resource texts to /api/sessions and poll the session for field
states, progress, and the assembled metadata document.`,
		Example: `  # Start server on default port 8888
  metaextract serve

  # Start server on custom port with a local Ollama model
  metaextract serve --port 3000 --provider ollama --model llama3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			schemas, newPipeline, err := flags.build(logger)
			if err != nil {
				return err
			}
			handler := handlers.New(schemas, newPipeline, logger)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/schemas", handler.HandleSchemas)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Extraction API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	flags.register(cmd)

	return cmd
}
