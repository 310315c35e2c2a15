// Package retry provides bounded retries with exponential backoff and jitter
// for transient failures against external collaborators.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"arbiter/pkg/errors"
)

// Config controls retry behavior
type Config struct {
	MaxRetries  int           // Max attempts after the first call (e.g. 3)
	BaseDelay   time.Duration // Initial backoff (e.g. 500ms)
	MaxDelay    time.Duration // Backoff cap (e.g. 30s)
	Multiplier  float64       // Exponential growth factor (e.g. 2.0)
	ShouldRetry func(error) bool
}

// DefaultConfig returns retry settings suitable for AI and database calls.
// Only transient error classes are retried; validation and parsing errors
// surface immediately.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		ShouldRetry: errors.Retryable,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = errors.Retryable
	}
	return c
}

// Do invokes fn, retrying with exponential backoff and full jitter while
// ShouldRetry approves the returned error. The last error is returned once
// attempts are exhausted or the context is cancelled.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.ShouldRetry(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// backoffDelay computes base * multiplier^(attempt-1), capped at MaxDelay,
// with full jitter to spread concurrent retries.
func backoffDelay(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	return time.Duration(rand.Float64() * backoff)
}
