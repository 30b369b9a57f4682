package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/service"
)

// RetryingClient decorates a Client with rate limiting and retry of transient
// transport failures. Responses that arrive are never retried, whatever they contain.
type RetryingClient struct {
	inner   Client
	limiter *rateLimiter
	logger  *slog.Logger
	opts    service.RetryOptions
}

var _ Client = (*RetryingClient)(nil)

// WithRetry wraps inner using the retry and rate-limit settings from cfg.
func WithRetry(inner Client, cfg Config, logger *slog.Logger) *RetryingClient {
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	return &RetryingClient{
		inner:   inner,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  common.LoggerOrDefault(logger),
		opts: service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: delay,
			MaxDelay:     30 * delay,
			Multiplier:   2.0,
		},
	}
}

// Engine reports the wrapped provider's identifier.
func (c *RetryingClient) Engine() string {
	return c.inner.Engine()
}

// Complete waits for a rate-limit token, then calls the provider, retrying
// 429, 5xx and network errors.
func (c *RetryingClient) Complete(ctx context.Context, req Request) (string, error) {
	var text string

	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		out, err := c.inner.Complete(ctx, req)
		if err != nil {
			return classifyError(err)
		}
		text = out
		return nil
	}, c.opts)

	if err != nil {
		c.logger.Warn("LLM request failed", "engine", c.inner.Engine(), "error", err)
		return "", err
	}
	return text, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &common.RetryableError{Err: err, Retryable: false}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if !apiErr.Temporary() {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		if apiErr.StatusCode == 429 {
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err
	}

	return &common.RetryableError{Err: err, Retryable: false}
}
