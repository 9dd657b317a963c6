package events

import (
	"context"
	"strings"
	"sync"

	"github.com/vurksha/backend/internal/infrastructure/monitoring"
)

// MemoryBus is an in-process Bus used by tests and local development.
// It delivers synchronously and applies the same bounded-redelivery
// rule as the AMQP bus.
type MemoryBus struct {
	mu            sync.Mutex
	subs          []memorySub
	maxDeliveries int64
	metrics       *monitoring.Metrics

	// DeadLetters collects messages that exhausted redelivery or were
	// rejected, for assertions.
	DeadLetters []DomainEvent
}

// Instrument routes publish, consume, and dead letter counts into the
// collector, mirroring the AMQP bus.
func (b *MemoryBus) Instrument(m *monitoring.Metrics) {
	b.metrics = m
}

type memorySub struct {
	pattern string
	handler Handler
}

// NewMemoryBus builds a bus that dead-letters after maxDeliveries
// attempts.
func NewMemoryBus(maxDeliveries int64) *MemoryBus {
	return &MemoryBus{maxDeliveries: maxDeliveries}
}

func (b *MemoryBus) Publish(ctx context.Context, event DomainEvent) error {
	b.mu.Lock()
	subs := make([]memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(event.EventType).Inc()
	}
	for _, sub := range subs {
		if !topicMatch(sub.pattern, event.EventType) {
			continue
		}
		b.deliver(ctx, sub.handler, event)
	}
	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, handler Handler, event DomainEvent) {
	for attempt := int64(1); ; attempt++ {
		outcome := handler(ctx, event)
		if b.metrics != nil {
			b.metrics.EventsConsumed.WithLabelValues(event.EventType, outcome.String()).Inc()
		}
		switch outcome {
		case Ack:
			return
		case Reject:
			b.record(event)
			return
		case Retry:
			if attempt >= b.maxDeliveries {
				b.record(event)
				return
			}
		}
	}
}

func (b *MemoryBus) record(event DomainEvent) {
	b.mu.Lock()
	b.DeadLetters = append(b.DeadLetters, event)
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.EventsDeadLettered.WithLabelValues(event.EventType).Inc()
	}
}

func (b *MemoryBus) Subscribe(_ context.Context, _, pattern string, handler Handler) error {
	b.mu.Lock()
	b.subs = append(b.subs, memorySub{pattern: pattern, handler: handler})
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Close() error { return nil }

// topicMatch implements AMQP topic matching: "*" matches one segment,
// "#" matches zero or more.
func topicMatch(pattern, key string) bool {
	return segMatch(strings.Split(pattern, "."), strings.Split(key, "."))
}

func segMatch(pat, key []string) bool {
	switch {
	case len(pat) == 0:
		return len(key) == 0
	case pat[0] == "#":
		for i := 0; i <= len(key); i++ {
			if segMatch(pat[1:], key[i:]) {
				return true
			}
		}
		return false
	case len(key) == 0:
		return false
	case pat[0] == "*" || pat[0] == key[0]:
		return segMatch(pat[1:], key[1:])
	default:
		return false
	}
}
