package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/clients/product"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/monitoring"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

// Catalog is the slice of the product client order creation needs.
type Catalog interface {
	GetBatch(ctx context.Context, ids []string) (map[string]product.Product, error)
}

// Pricing holds the order amount rules.
type Pricing struct {
	// MinOrderAmount is the smallest accepted subtotal.
	MinOrderAmount float64
	// DeliveryFee applies below FreeDeliveryThreshold.
	DeliveryFee float64
	// FreeDeliveryThreshold waives the fee at or above this subtotal.
	FreeDeliveryThreshold float64
}

// DefaultPricing returns the production amounts.
func DefaultPricing() Pricing {
	return Pricing{MinOrderAmount: 199, DeliveryFee: 40, FreeDeliveryThreshold: 499}
}

// Fee returns the delivery fee for a subtotal.
func (p Pricing) Fee(subtotal float64) float64 {
	if subtotal >= p.FreeDeliveryThreshold {
		return 0
	}
	return p.DeliveryFee
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CreateInput is what a client submits to place an order.
type CreateInput struct {
	UserID        string
	Items         []LineInput
	Address       Address
	PaymentMethod PaymentMethod
}

// Service implements order operations.
type Service struct {
	repo    Repository
	catalog Catalog
	kv      store.Store
	bus     events.Bus
	pricing Pricing
	logger  *logging.Logger
	metrics *monitoring.Metrics
	clock   func() time.Time
}

// NewService wires the order service.
func NewService(repo Repository, catalog Catalog, kv store.Store, bus events.Bus, pricing Pricing, logger *logging.Logger) *Service {
	if pricing == (Pricing{}) {
		pricing = DefaultPricing()
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		kv:      kv,
		bus:     bus,
		pricing: pricing,
		logger:  logger,
		clock:   time.Now,
	}
}

// Instrument routes order counts into the collector. Call during
// wiring.
func (s *Service) Instrument(m *monitoring.Metrics) {
	s.metrics = m
}

// Create validates the items against the catalog, applies the pricing
// rules, persists the order, and publishes order.created. COD orders
// confirm immediately; prepaid orders stay PENDING until the payment
// event arrives.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, apierror.New(apierror.CodeCartEmpty, "Order has no items")
	}
	if in.PaymentMethod != PaymentCOD && in.PaymentMethod != PaymentPrepaid {
		return Order{}, apierror.Validation("Unknown payment method",
			apierror.FieldError{Field: "paymentMethod", Message: "must be COD or PREPAID", Code: "enum"})
	}
	if in.Address.Line1 == "" || in.Address.City == "" || len(in.Address.Pincode) != 6 {
		return Order{}, apierror.Validation("Incomplete delivery address")
	}

	ids := make([]string, len(in.Items))
	for i, it := range in.Items {
		ids[i] = it.ProductID
	}
	known, err := s.catalog.GetBatch(ctx, ids)
	if err != nil {
		// Order placement is never optimistic: money moves here.
		return Order{}, err
	}

	items := make([]Item, 0, len(in.Items))
	var subtotal float64
	for _, it := range in.Items {
		p, ok := known[it.ProductID]
		if !ok || !p.Active {
			return Order{}, apierror.NotFound("product", it.ProductID)
		}
		if it.Quantity < 1 {
			return Order{}, apierror.Validation("Quantity must be at least 1")
		}
		if p.Stock < it.Quantity {
			return Order{}, apierror.New(apierror.CodeInsufficientStock, "Not enough stock").
				WithDetails(map[string]any{"productId": it.ProductID, "available": p.Stock})
		}
		items = append(items, Item{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: it.Quantity})
		subtotal += p.Price * float64(it.Quantity)
	}

	if subtotal < s.pricing.MinOrderAmount {
		return Order{}, apierror.New(apierror.CodeMinimumOrderNotMet,
			fmt.Sprintf("Minimum order amount is %.0f", s.pricing.MinOrderAmount)).
			WithDetails(map[string]any{"subtotal": subtotal, "minimum": s.pricing.MinOrderAmount})
	}

	now := s.clock().UTC()
	number, err := s.nextNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	fee := s.pricing.Fee(subtotal)
	status := StatusPending
	if in.PaymentMethod == PaymentCOD {
		status = StatusConfirmed
	}
	o := Order{
		ID:            uuid.NewString(),
		Number:        number,
		UserID:        in.UserID,
		Items:         items,
		Address:       in.Address,
		Subtotal:      subtotal,
		DeliveryFee:   fee,
		Total:         subtotal + fee,
		PaymentMethod: in.PaymentMethod,
		Status:        status,
		Timeline:      []TimelineEntry{{Status: status, At: now, Note: "order placed"}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return Order{}, apierror.Internal(err)
	}
	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}

	s.publish(ctx, events.OrderCreated, o, map[string]any{
		"orderId": o.ID, "number": o.Number, "total": o.Total, "paymentMethod": string(o.PaymentMethod),
	})
	if status == StatusConfirmed {
		s.publish(ctx, events.OrderConfirmed, o, map[string]any{"orderId": o.ID, "number": o.Number})
	}
	return o, nil
}

// Get returns the user's order by ID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Order, error) {
	o, found, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return Order{}, apierror.Internal(err)
	}
	// A foreign order reads as missing, not forbidden.
	if !found || o.UserID != userID {
		return Order{}, apierror.NotFound("order", orderID)
	}
	return o, nil
}

// List returns one page of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, page, limit int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	list, total, err := s.repo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apierror.Internal(err)
	}
	return list, total, nil
}

// Cancel moves an order to CANCELLED if its state still allows it.
func (s *Service) Cancel(ctx context.Context, userID, orderID, reason string) (Order, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return Order{}, err
	}
	if !o.CanCancel() {
		return Order{}, apierror.New(apierror.CodeOrderCannotCancel,
			fmt.Sprintf("Order in state %s cannot be cancelled", o.Status)).
			WithDetails(map[string]any{"status": string(o.Status)})
	}

	o = s.transition(o, StatusCancelled, reason)
	if err := s.repo.Update(ctx, o); err != nil {
		return Order{}, apierror.Internal(err)
	}
	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.publish(ctx, events.OrderCancelled, o, map[string]any{"orderId": o.ID, "number": o.Number, "reason": reason})
	return o, nil
}

// transition appends a timeline entry and bumps timestamps.
func (s *Service) transition(o Order, to Status, note string) Order {
	now := s.clock().UTC()
	o.Status = to
	o.UpdatedAt = now
	o.Timeline = append(o.Timeline, TimelineEntry{Status: to, At: now, Note: note})
	return o
}

// nextNumber allocates VRK-<year>-<seq> from a per-year store counter.
func (s *Service) nextNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	key := fmt.Sprintf("orderseq:%d", year)
	// The counter only has to outlive its year.
	ttl := time.Date(year+1, 1, 8, 0, 0, 0, 0, time.UTC).Sub(now)
	seq, err := s.kv.IncrWindow(ctx, key, ttl)
	if err != nil {
		return "", apierror.Wrap(apierror.CodeServiceUnavailable, "Could not allocate order number", err)
	}
	return fmt.Sprintf("VRK-%d-%06d", year, seq), nil
}

func (s *Service) publish(ctx context.Context, eventType string, o Order, payload map[string]any) {
	event := events.NewEvent(eventType, "order", o.ID, "order-service", payload).
		WithCorrelation("", "", o.UserID)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
}
