// Package cache implements a cache-aside layer over the shared store.
// Values are JSON encoded. The cache fails open: store errors degrade
// to loading from the source of truth.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/monitoring"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

// Cache is a typed-at-the-callsite JSON cache.
type Cache struct {
	kv      store.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New builds a cache over the given store.
func New(kv store.Store, logger *zap.Logger) *Cache {
	return &Cache{kv: kv, logger: logger}
}

// Instrument routes hit and miss counts into the collector, labeled by
// the key's prefix up to the first colon.
func (c *Cache) Instrument(m *monitoring.Metrics) {
	c.metrics = m
}

func (c *Cache) observe(key string, hit bool) {
	if c.metrics == nil {
		return
	}
	keyspace, _, _ := strings.Cut(key, ":")
	if hit {
		c.metrics.CacheHits.WithLabelValues(keyspace).Inc()
		return
	}
	c.metrics.CacheMisses.WithLabelValues(keyspace).Inc()
}

// Get loads the value under key into dest. It reports whether the key
// was present. Store errors and corrupt entries count as misses.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.kv.Get(ctx, "cache:"+key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.observe(key, false)
		return false
	}
	if err := sonic.UnmarshalString(raw, dest); err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = c.kv.Del(ctx, "cache:"+key)
		c.observe(key, false)
		return false
	}
	c.observe(key, true)
	return true
}

// Set stores value under key for ttl. Failures are logged, not
// returned, since the source of truth already has the value.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := sonic.MarshalString(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.SetEX(ctx, "cache:"+key, raw, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes keys after a write to the source of truth.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = "cache:" + k
	}
	if err := c.kv.Del(ctx, prefixed...); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// GetOrSet returns the cached value under key, or loads it, caches it
// for ttl, and returns it. Load errors pass through unchanged.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	val, err := load(ctx)
	if err != nil {
		return val, err
	}
	c.Set(ctx, key, val, ttl)
	return val, nil
}
