// Package ratelimit implements request rate limiting backed by the
// shared store. Two strategies are available: a fixed window counter
// (cheap, allows bursts at window boundaries) and a sliding window log
// (smoother, one sorted-set entry per request).
//
// The limiter is an availability optimization, not a correctness
// mechanism: when the store is unreachable the request is allowed and
// the failure is logged.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/store"
)

// Result describes the limiter's decision for a single request.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// Reset is when the current window ends and the counter restarts.
	Reset time.Time
}

// RetryAfter returns how long the caller should wait before retrying,
// rounded up to a whole second. Zero when the request was allowed.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	wait := r.Reset.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return wait.Round(time.Second)
}

// Limiter checks whether a request identified by a scope key is within
// its allowance.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config parameterizes a limiter.
type Config struct {
	// Max requests allowed per window.
	Max int64
	// Window is the measurement interval.
	Window time.Duration
}

// FixedWindow counts requests in clock-aligned buckets. The bucket key
// embeds the window start so a new window starts from zero.
type FixedWindow struct {
	store  store.Store
	cfg    Config
	logger *zap.Logger
	clock  func() time.Time
}

// NewFixedWindow builds a fixed window limiter over the given store.
func NewFixedWindow(s store.Store, cfg Config, logger *zap.Logger) *FixedWindow {
	return &FixedWindow{store: s, cfg: cfg, logger: logger, clock: time.Now}
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := f.clock()
	windowStart := now.Truncate(f.cfg.Window)
	reset := windowStart.Add(f.cfg.Window)
	bucket := fmt.Sprintf("rl:%s:%d", key, windowStart.Unix())

	count, err := f.store.IncrWindow(ctx, bucket, f.cfg.Window+time.Second)
	if err != nil {
		// Fail open: a degraded store must not take the API down.
		f.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err))
		return Result{Allowed: true, Limit: f.cfg.Max, Remaining: f.cfg.Max, Reset: reset}, nil
	}

	remaining := f.cfg.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= f.cfg.Max,
		Limit:     f.cfg.Max,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// SlidingWindow keeps a timestamped log of recent requests so the
// allowance rolls continuously instead of resetting at bucket edges.
type SlidingWindow struct {
	store  store.Store
	cfg    Config
	logger *zap.Logger
	clock  func() time.Time
}

// NewSlidingWindow builds a sliding window limiter over the given store.
func NewSlidingWindow(s store.Store, cfg Config, logger *zap.Logger) *SlidingWindow {
	return &SlidingWindow{store: s, cfg: cfg, logger: logger, clock: time.Now}
}

func (s *SlidingWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := s.clock()
	// Member uniqueness matters: two requests in the same millisecond
	// must both count.
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	count, err := s.store.CountWindow(ctx, "rl:"+key, member, now, s.cfg.Window)
	if err != nil {
		s.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err))
		return Result{Allowed: true, Limit: s.cfg.Max, Remaining: s.cfg.Max, Reset: now.Add(s.cfg.Window)}, nil
	}

	remaining := s.cfg.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= s.cfg.Max,
		Limit:     s.cfg.Max,
		Remaining: remaining,
		Reset:     now.Add(s.cfg.Window),
	}, nil
}
