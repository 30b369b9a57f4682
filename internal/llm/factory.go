package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NewProvider creates a bare provider client with no retry or rate limiting.
func NewProvider(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "gemini", "google":
		return newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewClient creates the provider named by cfg wrapped with retry and rate limiting.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*RetryingClient, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WithRetry(provider, cfg, logger), nil
}
