package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig controls how often a provider call is re-attempted.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns two retries with a short exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// RetryingProvider re-attempts transient provider failures.
type RetryingProvider struct {
	inner    Provider
	executor failsafe.Executor[string]
}

// WithRetry wraps p with a retry policy. A nil provider stays nil so callers
// can keep treating "no provider" as a single case.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if p == nil {
		return nil
	}
	cfg = normalizeRetryConfig(cfg)
	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ string, err error) bool {
			return shouldRetry(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[string]) {
			log.Printf("Retrying text generation (attempt %d): %v", e.Attempts()+1, e.LastError())
		}).
		Build()
	return &RetryingProvider{inner: p, executor: failsafe.With(policy)}
}

// Generate calls the wrapped provider through the retry policy.
func (r *RetryingProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return r.executor.WithContext(ctx).Get(func() (string, error) {
		return r.inner.Generate(ctx, prompt, maxTokens)
	})
}

// IsConfigured delegates to the wrapped provider.
func (r *RetryingProvider) IsConfigured() bool {
	return r.inner.IsConfigured()
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
