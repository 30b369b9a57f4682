package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends one prompt and returns the raw completion text.
	Complete(ctx context.Context, req Request) (string, error)
	// Engine identifies the provider and model, e.g. "openai:gpt-4o".
	Engine() string
}

// Request is a single completion request.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON-only response where it supports it.
	JSON bool
}

// Config holds provider selection and transport settings.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 4096
	defaultTimeout     = 2 * time.Minute
)

func (c Config) temperature() float64 {
	if c.Temperature == 0 {
		return defaultTemperature
	}
	return c.Temperature
}

func (c Config) maxTokens() int {
	if c.MaxTokens == 0 {
		return defaultMaxTokens
	}
	return c.MaxTokens
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// APIError is a non-200 response from a provider.
type APIError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
