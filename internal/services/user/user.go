// Package user implements phone+OTP authentication, profiles, and
// delivery addresses.
package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// User is a registered customer.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Address is a saved delivery address.
type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Label     string    `json:"label"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	City      string    `json:"city"`
	Pincode   string    `json:"pincode"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists users and addresses.
type Repository interface {
	FindByPhone(ctx context.Context, phone string) (User, bool, error)
	FindByID(ctx context.Context, id string) (User, bool, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	Addresses(ctx context.Context, userID string) ([]Address, error)
	AddAddress(ctx context.Context, a Address) error
}

// MemoryRepository is the in-memory Repository used by tests and local
// runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]User
	byPhone   map[string]string
	addresses map[string][]Address
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]User),
		byPhone:   make(map[string]string),
		addresses: make(map[string][]Address),
	}
}

func (r *MemoryRepository) FindByPhone(_ context.Context, phone string) (User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return User{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	return u, ok, nil
}

func (r *MemoryRepository) Create(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byPhone[u.Phone] = u.ID
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	return nil
}

func (r *MemoryRepository) Addresses(_ context.Context, userID string) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Address, len(r.addresses[userID]))
	copy(out, r.addresses[userID])
	return out, nil
}

func (r *MemoryRepository) AddAddress(_ context.Context, a Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses[a.UserID] = append(r.addresses[a.UserID], a)
	return nil
}

func newID() string { return uuid.NewString() }
