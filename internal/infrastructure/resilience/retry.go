package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 10s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// Jitter scales each delay by a uniform random factor in [0.5, 1.0)
	// to prevent thundering herds.
	// Default: true (see DefaultRetryConfig)
	Jitter bool

	// IsRetryable decides whether an error is worth retrying.
	// Default: all non-nil errors are retryable.
	IsRetryable func(err error) bool

	// OnRetry is called before each backoff wait, for observability only.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryConfig returns the retry defaults used for inter-service calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = func(err error) bool { return err != nil }
	}
}

// WithRetry runs op with bounded attempts and exponential backoff. The first
// attempt runs immediately. A non-retryable error, the final attempt's error,
// or a context cancellation during backoff propagates as-is; exactly one
// terminal outcome is produced.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	cfg.applyDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= cfg.MaxAttempts || !cfg.IsRetryable(err) {
			return zero, lastErr
		}

		delay := backoffDelay(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(err, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// backoffDelay computes min(initial * multiplier^(attempt-1), max), scaled by
// a uniform factor in [0.5, 1.0) when jitter is enabled.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	exp := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	delay := time.Duration(exp)
	if delay > cfg.MaxDelay || delay < 0 {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter {
		// #nosec G404 -- timing variance, not cryptographic.
		factor := 0.5 + rand.Float64()*0.5
		delay = time.Duration(float64(delay) * factor)
	}

	return delay
}

// Transient reports whether an error looks worth retrying: timeouts and
// temporary network conditions. Application errors should install their own
// predicate.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok && t.Timeout() {
		return true
	}
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok && t.Temporary() {
		return true
	}
	return false
}
