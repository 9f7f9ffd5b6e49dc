package dbtcloud

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// RetryConfig controls how transient failures are retried.
type RetryConfig struct {
	MaxAttempts    int           // default 3
	InitialBackoff time.Duration // default 500ms
	MaxBackoff     time.Duration // default 5s
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// withRetry runs fn until it succeeds, returns a non-retryable error or
// the attempts are exhausted. The last error is returned as is.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(ctx, lastErr) || attempt == cfg.MaxAttempts-1 {
			return lastErr
		}

		select {
		case <-time.After(backoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *ports.RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// backoff is 2^attempt * initial, capped at max.
func backoff(attempt int, initial, max time.Duration) time.Duration {
	d := time.Duration(1<<uint(attempt)) * initial
	if d > max || d <= 0 {
		return max
	}
	return d
}
