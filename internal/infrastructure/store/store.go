// Package store provides the key-value substrate shared by the rate
// limiter, idempotency store, cache, and cart session storage. The
// production implementation is Redis; an in-memory implementation backs
// tests and local development.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist or has
	// expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable wraps transport-level failures. Callers that treat
	// the store as an optimization (rate limiter, cache, idempotency)
	// fail open on it.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the minimal key-value contract the infrastructure layer
// depends on. Operations take a context and honor its deadline.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetEX stores value under key with the given TTL, overwriting any
	// existing value.
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key with the given TTL only if the key
	// does not already exist. It reports whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// IncrWindow atomically increments the counter under key and, when
	// the counter is created by this call, sets its expiry to ttl. It
	// returns the counter value after the increment. This is the fixed
	// window rate limiting primitive.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// CountWindow records member into the sorted set under key with the
	// score now, drops members older than window, refreshes the set's
	// expiry, and returns the resulting cardinality. This is the sliding
	// window rate limiting primitive.
	CountWindow(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error)

	// Ping verifies connectivity. Health checks use it.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
