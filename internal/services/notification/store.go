package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/vurksha/backend/internal/infrastructure/store"
)

// inboxTTL bounds how long an untouched inbox survives. Any write
// refreshes it.
const inboxTTL = 30 * 24 * time.Hour

// StoreRepository keeps notifications, devices, and preferences in the
// shared key-value store, one document per user and concern.
type StoreRepository struct {
	kv store.Store
}

// NewStoreRepository wraps kv.
func NewStoreRepository(kv store.Store) *StoreRepository {
	return &StoreRepository{kv: kv}
}

func inboxKey(userID string) string   { return "notifications:" + userID }
func devicesKey(userID string) string { return "devices:" + userID }
func prefsKey(userID string) string   { return "prefs:" + userID }

func loadDoc[T any](ctx context.Context, kv store.Store, key string) (T, bool, error) {
	var doc T
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	if err := sonic.Unmarshal([]byte(raw), &doc); err != nil {
		return doc, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, true, nil
}

func saveDoc(ctx context.Context, kv store.Store, key string, doc any, ttl time.Duration) error {
	raw, err := sonic.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.SetEX(ctx, key, string(raw), ttl)
}

// storedNotification keeps the user ID, which the API type hides.
type storedNotification struct {
	Notification
	UserID string `json:"userId"`
}

func (r *StoreRepository) loadInbox(ctx context.Context, userID string) ([]storedNotification, error) {
	inbox, _, err := loadDoc[[]storedNotification](ctx, r.kv, inboxKey(userID))
	return inbox, err
}

func (r *StoreRepository) saveInbox(ctx context.Context, userID string, inbox []storedNotification) error {
	return saveDoc(ctx, r.kv, inboxKey(userID), inbox, inboxTTL)
}

func (r *StoreRepository) Add(ctx context.Context, n Notification) error {
	inbox, err := r.loadInbox(ctx, n.UserID)
	if err != nil {
		return err
	}
	inbox = append(inbox, storedNotification{Notification: n, UserID: n.UserID})
	return r.saveInbox(ctx, n.UserID, inbox)
}

func (r *StoreRepository) ListUnread(ctx context.Context, userID string) ([]Notification, error) {
	inbox, err := r.loadInbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0)
	for i := len(inbox) - 1; i >= 0; i-- {
		if !inbox[i].Read {
			n := inbox[i].Notification
			n.UserID = userID
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *StoreRepository) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	inbox, err := r.loadInbox(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range inbox {
		if inbox[i].ID == id {
			inbox[i].Read = true
			return true, r.saveInbox(ctx, userID, inbox)
		}
	}
	return false, nil
}

func (r *StoreRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	inbox, err := r.loadInbox(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range inbox {
		if !inbox[i].Read {
			inbox[i].Read = true
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return count, r.saveInbox(ctx, userID, inbox)
}

func (r *StoreRepository) Devices(ctx context.Context, userID string) ([]Device, error) {
	devices, _, err := loadDoc[[]Device](ctx, r.kv, devicesKey(userID))
	return devices, err
}

func (r *StoreRepository) RegisterDevice(ctx context.Context, userID string, d Device) error {
	devices, err := r.Devices(ctx, userID)
	if err != nil {
		return err
	}
	for _, existing := range devices {
		if existing.Token == d.Token {
			return nil
		}
	}
	devices = append(devices, d)
	return saveDoc(ctx, r.kv, devicesKey(userID), devices, inboxTTL)
}

func (r *StoreRepository) UnregisterDevice(ctx context.Context, userID, token string) error {
	devices, err := r.Devices(ctx, userID)
	if err != nil {
		return err
	}
	for i, d := range devices {
		if d.Token == token {
			devices = append(devices[:i], devices[i+1:]...)
			return saveDoc(ctx, r.kv, devicesKey(userID), devices, inboxTTL)
		}
	}
	return nil
}

func (r *StoreRepository) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	return loadDoc[Preferences](ctx, r.kv, prefsKey(userID))
}

func (r *StoreRepository) SetPreferences(ctx context.Context, userID string, p Preferences) error {
	return saveDoc(ctx, r.kv, prefsKey(userID), p, inboxTTL)
}
