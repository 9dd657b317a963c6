// Package idempotency deduplicates unsafe operations keyed by a
// client-supplied idempotency key. The first request acquires a short
// lock, executes, and records its response; concurrent duplicates are
// rejected as in progress, and later duplicates replay the recorded
// response byte for byte.
package idempotency

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/store"
)

const (
	// ResultTTL is how long a completed response stays replayable.
	ResultTTL = 24 * time.Hour
	// LockTTL bounds how long a crashed first request can block
	// duplicates.
	LockTTL = 60 * time.Second
)

// ErrInProgress is returned by Begin when another request holding the
// same key has not finished yet. Callers map it to a retryable 409.
var ErrInProgress = errors.New("idempotency: operation in progress")

// Result is a recorded response, replayed verbatim for duplicates.
type Result struct {
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// stored is the wire form. The body is base64 so the record stays a
// single JSON string value regardless of the response content type.
type stored struct {
	StatusCode int       `json:"statusCode"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store coordinates idempotent execution over the shared key-value
// store. It fails open: if the store is unreachable the operation runs
// without deduplication rather than failing the request.
type Store struct {
	kv     store.Store
	logger *zap.Logger
}

// New builds an idempotency store.
func New(kv store.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func resultKey(key string) string { return "idempotency:" + key }
func lockKey(key string) string   { return "idempotency:" + key + ":lock" }

// Begin resolves the state of key. It returns a non-nil Result when a
// completed response exists to replay, ErrInProgress when another
// request holds the lock, or (nil, nil) once this request has acquired
// the lock and should execute the operation.
func (s *Store) Begin(ctx context.Context, key string) (*Result, error) {
	raw, err := s.kv.Get(ctx, resultKey(key))
	switch {
	case err == nil:
		var rec stored
		if uerr := sonic.UnmarshalString(raw, &rec); uerr != nil {
			s.logger.Warn("discarding corrupt idempotency record",
				zap.String("key", key),
				zap.Error(uerr))
			break
		}
		body, derr := base64.StdEncoding.DecodeString(rec.Body)
		if derr != nil {
			s.logger.Warn("discarding corrupt idempotency record",
				zap.String("key", key),
				zap.Error(derr))
			break
		}
		return &Result{StatusCode: rec.StatusCode, Body: body, Timestamp: rec.Timestamp}, nil
	case errors.Is(err, store.ErrNotFound):
		// First sighting of this key, fall through to the lock.
	default:
		s.logger.Warn("idempotency store unavailable, executing without deduplication",
			zap.String("key", key),
			zap.Error(err))
		return nil, nil
	}

	ok, err := s.kv.SetNX(ctx, lockKey(key), "1", LockTTL)
	if err != nil {
		s.logger.Warn("idempotency store unavailable, executing without deduplication",
			zap.String("key", key),
			zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, ErrInProgress
	}
	return nil, nil
}

// Complete records the response for key and releases the lock. Only
// successful responses are recorded; failures release the lock so the
// client can retry with the same key.
func (s *Store) Complete(ctx context.Context, key string, res Result) error {
	rec := stored{
		StatusCode: res.StatusCode,
		Body:       base64.StdEncoding.EncodeToString(res.Body),
		Timestamp:  res.Timestamp,
	}
	raw, err := sonic.MarshalString(rec)
	if err != nil {
		return err
	}
	if err := s.kv.SetEX(ctx, resultKey(key), raw, ResultTTL); err != nil {
		s.logger.Warn("failed to record idempotency result",
			zap.String("key", key),
			zap.Error(err))
	}
	return s.release(ctx, key)
}

// Release drops the lock without recording a result, used when the
// operation failed and should be retryable.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.release(ctx, key)
}

func (s *Store) release(ctx context.Context, key string) error {
	if err := s.kv.Del(ctx, lockKey(key)); err != nil {
		s.logger.Warn("failed to release idempotency lock",
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}
