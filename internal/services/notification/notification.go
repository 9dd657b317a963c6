// Package notification consumes domain events and fans them out to
// users: stored in-app notifications, push delivery to registered
// devices, and a live websocket stream. Redelivery of failed events is
// bounded by the bus; exhausted messages land on the dead letter queue.
package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Notification is one message shown to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Device is a registered push target.
type Device struct {
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	AddedAt  time.Time `json:"addedAt"`
}

// Preferences controls which notifications a user receives.
type Preferences struct {
	OrderUpdates bool `json:"orderUpdates"`
	Promotions   bool `json:"promotions"`
	Push         bool `json:"push"`
}

// DefaultPreferences is what users get until they change anything.
func DefaultPreferences() Preferences {
	return Preferences{OrderUpdates: true, Promotions: true, Push: true}
}

// Repository persists notifications, devices, and preferences.
type Repository interface {
	Add(ctx context.Context, n Notification) error
	ListUnread(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)

	Devices(ctx context.Context, userID string) ([]Device, error)
	RegisterDevice(ctx context.Context, userID string, d Device) error
	UnregisterDevice(ctx context.Context, userID, token string) error

	GetPreferences(ctx context.Context, userID string) (Preferences, bool, error)
	SetPreferences(ctx context.Context, userID string, p Preferences) error
}

// MemoryRepository is the in-memory Repository used by tests and local
// runs.
type MemoryRepository struct {
	mu            sync.RWMutex
	notifications map[string][]Notification
	devices       map[string][]Device
	preferences   map[string]Preferences
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		notifications: make(map[string][]Notification),
		devices:       make(map[string][]Device),
		preferences:   make(map[string]Preferences),
	}
}

func (r *MemoryRepository) Add(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.UserID] = append(r.notifications[n.UserID], n)
	return nil
}

func (r *MemoryRepository) ListUnread(_ context.Context, userID string) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notification, 0)
	for _, n := range r.notifications[userID] {
		if !n.Read {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, userID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.notifications[userID]
	for i, n := range list {
		if n.ID == id {
			list[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.notifications[userID]
	count := 0
	for i, n := range list {
		if !n.Read {
			list[i].Read = true
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) Devices(_ context.Context, userID string) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, len(r.devices[userID]))
	copy(out, r.devices[userID])
	return out, nil
}

func (r *MemoryRepository) RegisterDevice(_ context.Context, userID string, d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.devices[userID] {
		if existing.Token == d.Token {
			return nil
		}
	}
	r.devices[userID] = append(r.devices[userID], d)
	return nil
}

func (r *MemoryRepository) UnregisterDevice(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.devices[userID]
	for i, d := range list {
		if d.Token == token {
			r.devices[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *MemoryRepository) GetPreferences(_ context.Context, userID string) (Preferences, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preferences[userID]
	return p, ok, nil
}

func (r *MemoryRepository) SetPreferences(_ context.Context, userID string, p Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferences[userID] = p
	return nil
}
