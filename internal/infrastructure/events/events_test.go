package events

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vurksha/backend/internal/infrastructure/monitoring"
)

func TestNewEventAssignsIdentity(t *testing.T) {
	e := NewEvent(OrderCreated, "order", "o-1", "order-service", map[string]any{"total": 499})

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, OrderCreated, e.EventType)
	assert.Equal(t, "o-1", e.AggregateID)
	assert.Equal(t, "order", e.AggregateType)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "order-service", e.Metadata.Source)
	assert.False(t, e.Timestamp.IsZero())

	e2 := NewEvent(OrderCreated, "order", "o-1", "order-service", nil)
	assert.NotEqual(t, e.EventID, e2.EventID)
}

func TestMarshalRoundTrip(t *testing.T) {
	e := NewEvent(PaymentCompleted, "order", "o-1", "payments",
		map[string]any{"orderId": "o-1", "amount": 648.0}).
		WithCorrelation("corr-1", "cause-1", "u-1")

	data, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, got.EventID)
	assert.Equal(t, "corr-1", got.Metadata.CorrelationID)
	assert.Equal(t, "cause-1", got.Metadata.CausationID)
	assert.Equal(t, 648.0, got.Payload["amount"])
}

func TestUnmarshalRejectsIncomplete(t *testing.T) {
	_, err := Unmarshal([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestTopicMatch(t *testing.T) {
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.cancelled", false},
		{"order.*", "order.created", true},
		{"order.*", "order.status.changed", false},
		{"order.#", "order.status.changed", true},
		{"#", "payment.completed", true},
		{"*.completed", "payment.completed", true},
		{"*.completed", "order.created", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, topicMatch(tc.pattern, tc.key), "%s vs %s", tc.pattern, tc.key)
	}
}

func TestMemoryBusRoutesByPattern(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(5)

	var orderEvents, allEvents []string
	require.NoError(t, bus.Subscribe(ctx, "orders", "order.*", func(_ context.Context, e DomainEvent) Outcome {
		orderEvents = append(orderEvents, e.EventType)
		return Ack
	}))
	require.NoError(t, bus.Subscribe(ctx, "audit", "#", func(_ context.Context, e DomainEvent) Outcome {
		allEvents = append(allEvents, e.EventType)
		return Ack
	}))

	require.NoError(t, bus.Publish(ctx, NewEvent(OrderCreated, "order", "o-1", "test", nil)))
	require.NoError(t, bus.Publish(ctx, NewEvent(PaymentCompleted, "order", "o-1", "test", nil)))

	assert.Equal(t, []string{OrderCreated}, orderEvents)
	assert.Equal(t, []string{OrderCreated, PaymentCompleted}, allEvents)
}

func TestMemoryBusBoundedRedelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(5)

	attempts := 0
	require.NoError(t, bus.Subscribe(ctx, "orders", "order.*", func(context.Context, DomainEvent) Outcome {
		attempts++
		return Retry
	}))
	require.NoError(t, bus.Publish(ctx, NewEvent(OrderCreated, "order", "o-1", "test", nil)))

	assert.Equal(t, 5, attempts, "handler should run exactly MaxDeliveries times")
	require.Len(t, bus.DeadLetters, 1)
	assert.Equal(t, OrderCreated, bus.DeadLetters[0].EventType)
}

func TestMemoryBusRejectDeadLettersImmediately(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(5)

	attempts := 0
	require.NoError(t, bus.Subscribe(ctx, "orders", "order.*", func(context.Context, DomainEvent) Outcome {
		attempts++
		return Reject
	}))
	require.NoError(t, bus.Publish(ctx, NewEvent(OrderCreated, "order", "o-1", "test", nil)))

	assert.Equal(t, 1, attempts)
	assert.Len(t, bus.DeadLetters, 1)
}

func TestMemoryBusRecoversAfterTransientFailures(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(5)

	attempts := 0
	require.NoError(t, bus.Subscribe(ctx, "orders", "order.*", func(context.Context, DomainEvent) Outcome {
		attempts++
		if attempts < 3 {
			return Retry
		}
		return Ack
	}))
	require.NoError(t, bus.Publish(ctx, NewEvent(OrderCreated, "order", "o-1", "test", nil)))

	assert.Equal(t, 3, attempts)
	assert.Empty(t, bus.DeadLetters)
}

func TestMemoryBusCountsTraffic(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(2)
	m := monitoring.New("order-service")
	bus.Instrument(m)

	require.NoError(t, bus.Subscribe(ctx, "orders", "order.*", func(context.Context, DomainEvent) Outcome {
		return Retry
	}))
	require.NoError(t, bus.Publish(ctx, NewEvent(OrderCreated, "order", "o-1", "test", nil)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(OrderCreated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsConsumed.WithLabelValues(OrderCreated, "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDeadLettered.WithLabelValues(OrderCreated)))
}
