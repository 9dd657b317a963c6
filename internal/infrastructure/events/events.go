// Package events defines the domain event envelope and the message bus
// the services publish and consume through. Events travel over a topic
// exchange; handler failures are redelivered a bounded number of times
// and then parked on a dead letter queue.
package events

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Event type names, also used as routing keys.
const (
	CartItemAdded       = "cart.item.added"
	CartItemRemoved     = "cart.item.removed"
	CartCleared         = "cart.cleared"
	OrderCreated        = "order.created"
	OrderConfirmed      = "order.confirmed"
	OrderShipped        = "order.shipped"
	OrderDelivered      = "order.delivered"
	OrderCancelled      = "order.cancelled"
	OrderStatusChanged  = "order.status.changed"
	PaymentCompleted    = "payment.completed"
	PaymentFailed       = "payment.failed"
	ProductPriceChanged = "product.price.changed"
	ProductOutOfStock   = "product.out_of_stock"
	UserRegistered      = "user.registered"
)

// Metadata carries tracing and attribution across service boundaries.
type Metadata struct {
	CorrelationID string `json:"correlationId"`
	CausationID   string `json:"causationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Source        string `json:"source"`
}

// DomainEvent is the wire envelope for every event in the system.
type DomainEvent struct {
	EventID       string         `json:"eventId"`
	EventType     string         `json:"eventType"`
	AggregateID   string         `json:"aggregateId"`
	AggregateType string         `json:"aggregateType"`
	Timestamp     time.Time      `json:"timestamp"`
	Version       int            `json:"version"`
	Payload       map[string]any `json:"payload"`
	Metadata      Metadata       `json:"metadata"`
}

// NewEvent builds an envelope for eventType emitted by source about the
// given aggregate. The event ID and timestamp are assigned here so a
// publisher never reuses either.
func NewEvent(eventType, aggregateType, aggregateID, source string, payload map[string]any) DomainEvent {
	return DomainEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Timestamp:     time.Now().UTC(),
		Version:       1,
		Payload:       payload,
		Metadata:      Metadata{Source: source, CorrelationID: uuid.NewString()},
	}
}

// WithCorrelation threads the causing request's identifiers onto the
// event so downstream logs join up.
func (e DomainEvent) WithCorrelation(correlationID, causationID, userID string) DomainEvent {
	if correlationID != "" {
		e.Metadata.CorrelationID = correlationID
	}
	e.Metadata.CausationID = causationID
	e.Metadata.UserID = userID
	return e
}

// Marshal encodes the event for the wire.
func Marshal(e DomainEvent) ([]byte, error) {
	return sonic.Marshal(e)
}

// Unmarshal decodes a wire message, validating the fields every
// consumer relies on.
func Unmarshal(data []byte) (DomainEvent, error) {
	var e DomainEvent
	if err := sonic.Unmarshal(data, &e); err != nil {
		return DomainEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if e.EventID == "" || e.EventType == "" {
		return DomainEvent{}, fmt.Errorf("decode event: missing eventId or eventType")
	}
	return e, nil
}
