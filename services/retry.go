package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ExponentialBackoff grows the wait between attempts by Multiplier, capped at MaxInterval
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextBackoff returns the wait before the attempt after attempt
func (b ExponentialBackoff) NextBackoff(attempt int) time.Duration {
	backoff := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.JitterFactor > 0 {
		backoff += rand.Float64() * b.JitterFactor * backoff
	}
	if b.MaxInterval > 0 && backoff > float64(b.MaxInterval) {
		backoff = float64(b.MaxInterval)
	}
	return time.Duration(backoff)
}

// RetryConfig controls retryOn
type RetryConfig struct {
	MaxAttempts int
	Backoff     ExponentialBackoff
	Logger      *zap.Logger
}

// DefaultConflictRetry is used for optimistic-concurrency conflicts on orders
var DefaultConflictRetry = RetryConfig{
	MaxAttempts: 3,
	Backoff: ExponentialBackoff{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		Multiplier:      2,
		JitterFactor:    0.2,
	},
}

// retryOn runs fn until it succeeds, returns an error other than retryable, or runs out of attempts.
// The last error is returned unwrapped so callers can still match it.
func retryOn(ctx context.Context, cfg RetryConfig, retryable error, fn func() error) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled by context: %w", err)
		}

		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, retryable) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		backoff := cfg.Backoff.NextBackoff(attempt)
		logger.Debug("Retrying after error",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context during backoff: %w", ctx.Err())
		}
	}
	return lastErr
}
