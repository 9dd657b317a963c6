// Package order implements order creation (idempotent), listing,
// cancellation, pricing rules, and the payment-completed consumer.
package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPacked    Status = "PACKED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// cancellable lists the states an order may be cancelled from.
var cancellable = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
}

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentPrepaid PaymentMethod = "PREPAID"
)

// Item is one purchased line, priced at order time.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Address is the delivery destination snapshot.
type Address struct {
	Label   string `json:"label,omitempty"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

// TimelineEntry records one status change.
type TimelineEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// Order is the aggregate.
type Order struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	UserID        string          `json:"userId"`
	Items         []Item          `json:"items"`
	Address       Address         `json:"address"`
	Subtotal      float64         `json:"subtotal"`
	DeliveryFee   float64         `json:"deliveryFee"`
	Total         float64         `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentPaid   bool            `json:"paymentPaid"`
	Status        Status          `json:"status"`
	Timeline      []TimelineEntry `json:"timeline"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CanCancel reports whether the order may still be cancelled.
func (o Order) CanCancel() bool {
	return cancellable[o.Status]
}

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Find(ctx context.Context, id string) (Order, bool, error)
	Update(ctx context.Context, o Order) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]Order, int64, error)
}

// MemoryRepository is the in-memory Repository used by tests and local
// runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]Order)}
}

func (r *MemoryRepository) Create(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, id string) (Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok, nil
}

func (r *MemoryRepository) Update(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, page, limit int) ([]Order, int64, error) {
	r.mu.RLock()
	matched := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			matched = append(matched, o)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []Order{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
