package order

import (
	"context"

	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/events"
)

// Queue and binding for the payment consumer.
const (
	PaymentQueue   = "order-service.payments"
	PaymentPattern = "payment.*"
)

// PaymentHandler reacts to payment events: a completed payment confirms
// the pending order, a failed payment cancels it. Transient repository
// failures are retried by the bus up to its delivery limit, then
// dead-lettered; undecodable payloads are rejected immediately.
func (s *Service) PaymentHandler() events.Handler {
	return func(ctx context.Context, e events.DomainEvent) events.Outcome {
		orderID, _ := e.Payload["orderId"].(string)
		if orderID == "" {
			s.logger.Error("payment event without orderId", zap.String("event_id", e.EventID))
			return events.Reject
		}
		log := s.logger.With(
			zap.String("event_type", e.EventType),
			zap.String("order_id", orderID))

		o, found, err := s.repo.Find(ctx, orderID)
		if err != nil {
			log.Warn("order lookup failed, will retry", zap.Error(err))
			return events.Retry
		}
		if !found {
			// Ordering across services is not guaranteed; the order may
			// not be visible yet.
			log.Warn("payment for unknown order, will retry")
			return events.Retry
		}

		switch e.EventType {
		case events.PaymentCompleted:
			if o.PaymentPaid {
				// Duplicate delivery.
				return events.Ack
			}
			o.PaymentPaid = true
			if o.Status == StatusPending {
				o = s.transition(o, StatusConfirmed, "payment received")
			}
			if err := s.repo.Update(ctx, o); err != nil {
				log.Warn("order update failed, will retry", zap.Error(err))
				return events.Retry
			}
			s.publish(ctx, events.OrderConfirmed, o, map[string]any{"orderId": o.ID, "number": o.Number})
			log.Info("order confirmed by payment")
			return events.Ack

		case events.PaymentFailed:
			if !o.CanCancel() {
				return events.Ack
			}
			o = s.transition(o, StatusCancelled, "payment failed")
			if err := s.repo.Update(ctx, o); err != nil {
				log.Warn("order update failed, will retry", zap.Error(err))
				return events.Retry
			}
			s.publish(ctx, events.OrderCancelled, o, map[string]any{"orderId": o.ID, "reason": "payment failed"})
			log.Info("order cancelled, payment failed")
			return events.Ack

		default:
			return events.Ack
		}
	}
}

// Subscribe binds the payment consumer on bus.
func (s *Service) Subscribe(ctx context.Context, bus events.Bus) error {
	return bus.Subscribe(ctx, PaymentQueue, PaymentPattern, s.PaymentHandler())
}
