package events

import "context"

// Outcome is a handler's verdict on a delivery.
type Outcome int

const (
	// Ack marks the event handled; it will not be redelivered.
	Ack Outcome = iota
	// Retry requeues the event for another delivery attempt. After the
	// bus's delivery limit it is dead-lettered instead.
	Retry
	// Reject dead-letters the event immediately, for messages that can
	// never succeed (malformed payloads, unknown types).
	Reject
)

// String returns the outcome name, used as a metric label.
func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Handler processes one delivery of an event.
type Handler func(ctx context.Context, event DomainEvent) Outcome

// Bus is the publish/subscribe contract between services.
type Bus interface {
	// Publish sends event to every subscription whose pattern matches
	// its EventType.
	Publish(ctx context.Context, event DomainEvent) error

	// Subscribe binds handler to events matching pattern (AMQP topic
	// syntax: "order.*", "#"). The queue name makes the subscription
	// durable and shared across instances of a service.
	Subscribe(ctx context.Context, queue, pattern string, handler Handler) error

	// Close tears down the connection, stopping all subscriptions.
	Close() error
}
