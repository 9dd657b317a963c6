package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
)

// Queue names owned by this service. Separate queues keep a payment
// outage from delaying order notifications.
const (
	OrdersQueue    = "notification-service.orders"
	OrdersPattern  = "order.*"
	PaymentQueue   = "notification-service.payments"
	PaymentPattern = "payment.*"
)

var validPlatforms = map[string]bool{"android": true, "ios": true, "web": true}

// Service turns domain events into notifications and exposes the
// notification inbox, device registry, and preference operations.
type Service struct {
	repo   Repository
	pusher Pusher
	stream *Stream
	logger *logging.Logger

	clock func() time.Time
}

// NewService wires the notification service. pusher and stream may be
// nil when push or live delivery is not configured.
func NewService(repo Repository, pusher Pusher, stream *Stream, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{repo: repo, pusher: pusher, stream: stream, logger: logger, clock: time.Now}
}

// Subscribe binds the event consumers on bus.
func (s *Service) Subscribe(ctx context.Context, bus events.Bus) error {
	handler := s.EventHandler()
	if err := bus.Subscribe(ctx, OrdersQueue, OrdersPattern, handler); err != nil {
		return err
	}
	return bus.Subscribe(ctx, PaymentQueue, PaymentPattern, handler)
}

// EventHandler returns the handler translating domain events into user
// notifications. Events without a template are acknowledged untouched;
// events that cannot name a user can never succeed and are rejected.
func (s *Service) EventHandler() events.Handler {
	return func(ctx context.Context, event events.DomainEvent) events.Outcome {
		tmpl, ok := templates[event.EventType]
		if !ok {
			return events.Ack
		}

		userID := event.Metadata.UserID
		if userID == "" {
			s.logger.Warn("event without user attribution",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType))
			return events.Reject
		}

		prefs, found, err := s.repo.GetPreferences(ctx, userID)
		if err != nil {
			return events.Retry
		}
		if !found {
			prefs = DefaultPreferences()
		}
		if !prefs.OrderUpdates {
			return events.Ack
		}

		n := Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      event.EventType,
			Title:     render(tmpl.Title, event.Payload),
			Body:      render(tmpl.Body, event.Payload),
			CreatedAt: s.clock().UTC(),
		}
		if err := s.repo.Add(ctx, n); err != nil {
			s.logger.Warn("failed to store notification",
				zap.String("event_id", event.EventID), zap.Error(err))
			return events.Retry
		}

		if s.stream != nil {
			s.stream.Broadcast(n)
		}
		if prefs.Push {
			s.deliverPush(ctx, n)
		}
		return events.Ack
	}
}

// deliverPush sends n to every registered device. The notification is
// already stored, so push failures are logged and not redelivered;
// replaying the event would duplicate the inbox entry.
func (s *Service) deliverPush(ctx context.Context, n Notification) {
	if s.pusher == nil {
		return
	}
	devices, err := s.repo.Devices(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("failed to load devices", zap.Error(err))
		return
	}
	for _, d := range devices {
		if err := s.pusher.Push(ctx, d.Token, n); err != nil {
			s.logger.Warn("push delivery failed",
				zap.String("platform", d.Platform),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

// Unread lists the user's unread notifications, newest first.
func (s *Service) Unread(ctx context.Context, userID string) ([]Notification, error) {
	list, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return list, nil
}

// MarkRead marks a single notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return apierror.Internal(err)
	}
	if !ok {
		return apierror.NotFound("Notification", id)
	}
	return nil
}

// MarkAllRead marks every unread notification read and returns how many
// it touched.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	return count, nil
}

// RegisterDevice records a push target for the user. Registering the
// same token again is a no-op.
func (s *Service) RegisterDevice(ctx context.Context, userID, token, platform string) error {
	if token == "" {
		return apierror.Validation("Device token is required",
			apierror.FieldError{Field: "token", Message: "required"})
	}
	if !validPlatforms[platform] {
		return apierror.Validation("Unknown platform",
			apierror.FieldError{Field: "platform", Message: "must be android, ios, or web"})
	}
	d := Device{Token: token, Platform: platform, AddedAt: s.clock().UTC()}
	if err := s.repo.RegisterDevice(ctx, userID, d); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// UnregisterDevice removes a push target. Unknown tokens are ignored.
func (s *Service) UnregisterDevice(ctx context.Context, userID, token string) error {
	if err := s.repo.UnregisterDevice(ctx, userID, token); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// GetPreferences returns the user's preferences, defaulted if never
// set.
func (s *Service) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	p, found, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return Preferences{}, apierror.Internal(err)
	}
	if !found {
		return DefaultPreferences(), nil
	}
	return p, nil
}

// SetPreferences replaces the user's preferences.
func (s *Service) SetPreferences(ctx context.Context, userID string, p Preferences) error {
	if err := s.repo.SetPreferences(ctx, userID, p); err != nil {
		return apierror.Internal(err)
	}
	return nil
}
