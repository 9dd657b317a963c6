package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the Redis semantics closely enough that the rate limiter,
// idempotency store, and cache behave identically against either.
type Memory struct {
	mu   sync.Mutex
	vals map[string]memoryEntry
	sets map[string]map[string]int64
	exp  map[string]time.Time

	// clock is overridable so expiry behavior is testable without
	// sleeping.
	clock func() time.Time
}

type memoryEntry struct {
	value   string
	counter int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		vals:  make(map[string]memoryEntry),
		sets:  make(map[string]map[string]int64),
		exp:   make(map[string]time.Time),
		clock: time.Now,
	}
}

func (m *Memory) now() time.Time { return m.clock() }

// expired reports whether key has a deadline in the past. Caller holds mu.
func (m *Memory) expired(key string) bool {
	dl, ok := m.exp[key]
	return ok && m.now().After(dl)
}

// purge drops key if expired. Caller holds mu.
func (m *Memory) purge(key string) {
	if m.expired(key) {
		delete(m.vals, key)
		delete(m.sets, key)
		delete(m.exp, key)
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	e, ok := m.vals[key]
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) SetEX(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = memoryEntry{value: value}
	if ttl > 0 {
		m.exp[key] = m.now().Add(ttl)
	} else {
		delete(m.exp, key)
	}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = memoryEntry{value: value}
	if ttl > 0 {
		m.exp[key] = m.now().Add(ttl)
	}
	return true, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vals, k)
		delete(m.sets, k)
		delete(m.exp, k)
	}
	return nil
}

func (m *Memory) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	e := m.vals[key]
	if e.counter == 0 && ttl > 0 {
		m.exp[key] = m.now().Add(ttl)
	}
	e.counter++
	m.vals[key] = e
	return e.counter, nil
}

func (m *Memory) CountWindow(_ context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]int64)
		m.sets[key] = set
	}
	cutoff := now.UnixMilli() - window.Milliseconds()
	for mem, score := range set {
		if score <= cutoff {
			delete(set, mem)
		}
	}
	set[member] = now.UnixMilli()
	m.exp[key] = m.now().Add(window + time.Second)
	return int64(len(set)), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
