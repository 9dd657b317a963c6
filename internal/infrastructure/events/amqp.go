package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/monitoring"
)

// deliveryCountHeader tracks how many times a message has been handed
// to a handler. It is carried on the message itself so the count
// survives a republish.
const deliveryCountHeader = "x-delivery-count"

// AMQPConfig wires an AMQPBus to a broker.
type AMQPConfig struct {
	// URL is the broker connection string (amqp://...).
	URL string
	// Exchange is the topic exchange all domain events flow through.
	Exchange string
	// DeadLetter is the exchange exhausted and rejected messages are
	// parked on.
	DeadLetter string
	// MaxDeliveries caps handler attempts per message before it is
	// dead-lettered.
	MaxDeliveries int64
}

// AMQPBus implements Bus over RabbitMQ. Publishing uses one channel;
// each subscription gets its own consuming channel.
type AMQPBus struct {
	conn    *amqp.Connection
	pub     *amqp.Channel
	cfg     AMQPConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Instrument routes publish, consume, and dead letter counts into the
// collector. Call during wiring, before Subscribe.
func (b *AMQPBus) Instrument(m *monitoring.Metrics) {
	b.metrics = m
}

// NewAMQPBus connects to the broker and declares the event and dead
// letter exchanges plus the shared dead letter queue.
func NewAMQPBus(cfg AMQPConfig, logger *zap.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.DeadLetter, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare dead letter exchange: %w", err)
	}
	dlq, err := ch.QueueDeclare(cfg.DeadLetter+".queue", true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := ch.QueueBind(dlq.Name, "", cfg.DeadLetter, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bind dead letter queue: %w", err)
	}

	return &AMQPBus{conn: conn, pub: ch, cfg: cfg, logger: logger}, nil
}

// Ping reports whether the broker connection is still open. Used by
// health checks.
func (b *AMQPBus) Ping(context.Context) error {
	if b.conn.IsClosed() {
		return fmt.Errorf("broker connection closed")
	}
	return nil
}

func (b *AMQPBus) Publish(ctx context.Context, event DomainEvent) error {
	body, err := Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = b.pub.PublishWithContext(ctx, b.cfg.Exchange, event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(event.EventType).Inc()
	}
	return nil
}

func (b *AMQPBus) Subscribe(ctx context.Context, queue, pattern string, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, pattern, b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, pattern, err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go b.consume(ctx, ch, queue, deliveries, handler)
	return nil
}

func (b *AMQPBus) consume(ctx context.Context, ch *amqp.Channel, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	defer func() { _ = ch.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.dispatch(ctx, queue, d, handler)
		}
	}
}

func (b *AMQPBus) dispatch(ctx context.Context, queue string, d amqp.Delivery, handler Handler) {
	event, err := Unmarshal(d.Body)
	if err != nil {
		b.logger.Error("dead-lettering undecodable message",
			zap.String("queue", queue),
			zap.Error(err))
		b.deadLetter(ctx, d)
		return
	}

	log := b.logger.With(
		zap.String("queue", queue),
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID))

	outcome := handler(ctx, event)
	if b.metrics != nil {
		b.metrics.EventsConsumed.WithLabelValues(event.EventType, outcome.String()).Inc()
	}

	switch outcome {
	case Ack:
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", zap.Error(err))
		}
	case Reject:
		log.Warn("handler rejected event, dead-lettering")
		b.deadLetter(ctx, d)
	case Retry:
		attempts := deliveryCount(d) + 1
		if attempts >= b.cfg.MaxDeliveries {
			log.Error("delivery limit reached, dead-lettering",
				zap.Int64("attempts", attempts))
			b.deadLetter(ctx, d)
			return
		}
		log.Warn("handler failed, requeueing", zap.Int64("attempts", attempts))
		b.requeue(ctx, d, attempts)
	}
}

// requeue republishes the delivery with an incremented attempt count,
// then acks the original. A plain broker requeue would not let us count
// attempts.
func (b *AMQPBus) requeue(ctx context.Context, d amqp.Delivery, attempts int64) {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[deliveryCountHeader] = attempts

	err := b.pub.PublishWithContext(ctx, b.cfg.Exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		// Leave the original unacked so the broker redelivers it.
		b.logger.Error("requeue publish failed, leaving message unacked", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (b *AMQPBus) deadLetter(ctx context.Context, d amqp.Delivery) {
	err := b.pub.PublishWithContext(ctx, b.cfg.DeadLetter, d.RoutingKey, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      d.Headers,
		Body:         d.Body,
	})
	if err != nil {
		b.logger.Error("dead letter publish failed, leaving message unacked", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if b.metrics != nil {
		b.metrics.EventsDeadLettered.WithLabelValues(d.RoutingKey).Inc()
	}
	_ = d.Ack(false)
}

func deliveryCount(d amqp.Delivery) int64 {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (b *AMQPBus) Close() error {
	return b.conn.Close()
}
