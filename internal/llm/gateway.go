package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Gateway wraps a provider with the retry policy. All pipeline traffic goes
// through Invoke so every call shares the same backoff envelope and logging.
type Gateway struct {
	provider Provider
	config   Config
	policy   Policy
	logger   *slog.Logger
}

// NewGateway creates a gateway for one provider/model pair.
func NewGateway(provider Provider, config Config, policy Policy, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider: provider,
		config:   config,
		policy:   policy,
		logger:   logger,
	}
}

// Invoke sends the messages to the provider, retrying transient failures.
// After the retry budget is exhausted the original error propagates.
func (g *Gateway) Invoke(ctx context.Context, messages []Message) (string, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var content string
	err := g.policy.Do(ctx, g.logger, "llm.invoke", func() error {
		var callErr error
		content, callErr = g.provider.Complete(ctx, g.config, messages)
		return callErr
	})

	if err != nil {
		g.logger.Error("llm.invoke_failed",
			"req_id", reqID,
			"model", g.config.Model,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return "", err
	}

	g.logger.Debug("llm.invoke",
		"req_id", reqID,
		"model", g.config.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"bytes", len(content),
	)
	return content, nil
}
