// Package llm talks to language-model backends. It defines the provider
// contract, ships OpenAI-compatible, Gemini, and Ollama providers, and wraps
// them in a gateway that retries transient failures with exponential backoff.
package llm

import (
	"context"
	"fmt"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Complete(ctx context.Context, config Config, messages []Message) (string, error)
}

// ForName returns the provider registered under name.
func ForName(name string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(), nil
	case "gemini":
		return NewGemini(), nil
	case "ollama":
		return NewOllama(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// flatten joins chat messages into a single prompt for providers that take
// plain text instead of a message list.
func flatten(messages []Message) string {
	var prompt string
	for i, m := range messages {
		if i > 0 {
			prompt += "\n\n"
		}
		prompt += m.Content
	}
	return prompt
}
