package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/logging"
)

// retryableError is the registry's default predicate. Errors that
// classify themselves via a Retryable method are honored; anything else
// is assumed transient.
func retryableError(err error) bool {
	type retryable interface{ Retryable() bool }
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return err != nil
}

// Registry owns one breaker per named dependency. It is constructed once per
// process and handed to whatever builds dependency clients; there is no
// package-level registry.
type Registry struct {
	settings Settings
	retry    RetryConfig
	logger   *logging.Logger
	onRetry  func(dependency string, attempt int)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers share the given defaults.
// State transitions are logged and forwarded to onChange when set.
func NewRegistry(settings Settings, retry RetryConfig, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		settings: settings,
		retry:    retry,
		logger:   logger.WithComponent("resilience"),
		breakers: make(map[string]*Breaker),
	}
	if r.retry.IsRetryable == nil {
		r.retry.IsRetryable = retryableError
	}

	userChange := settings.OnStateChange
	r.settings.OnStateChange = func(name string, from, to State) {
		r.logger.Info("circuit breaker state change",
			zap.String("dependency", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if userChange != nil {
			userChange(name, from, to)
		}
	}

	return r
}

// ObserveRetries registers fn to run for every retry of any dependency
// executed through the registry. Set during wiring, before the registry
// is shared across goroutines.
func (r *Registry) ObserveRetries(fn func(dependency string, attempt int)) {
	r.onRetry = fn
}

// Get returns the breaker for a dependency, creating it lazily.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.settings)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of every known breaker's state, for health and
// metrics endpoints.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

// Execute runs op against the named dependency: retries with backoff inside
// the breaker, so one exhausted retry sequence counts as one failure toward
// the trip threshold.
func Execute[T any](ctx context.Context, r *Registry, dependency string, op func(context.Context) (T, error)) (T, error) {
	breaker := r.Get(dependency)

	retry := r.retry
	if r.onRetry != nil {
		user := retry.OnRetry
		retry.OnRetry = func(err error, attempt int, delay time.Duration) {
			r.onRetry(dependency, attempt)
			if user != nil {
				user(err, attempt, delay)
			}
		}
	}

	result, err := breaker.Execute(func() (any, error) {
		return WithRetry(ctx, retry, op)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
