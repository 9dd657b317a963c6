package resilience

import (
	"context"
	"errors"
	"time"
)

// Standard timeouts for different operation classes.
const (
	TimeoutFast     = 1 * time.Second   // cache lookups
	TimeoutStandard = 5 * time.Second   // intra-cluster API calls
	TimeoutDatabase = 10 * time.Second  // persistence operations
	TimeoutExternal = 15 * time.Second  // third-party services
)

// WithTimeout bounds op by a deadline. A deadline hit surfaces as
// context.DeadlineExceeded, which counts as a failure toward any wrapping
// breaker's threshold.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		result, err := op(ctx)
		ch <- outcome{result, err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// IsTimeout reports whether an error chain contains a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
