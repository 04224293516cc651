package session

import (
	"context"
	"time"
)

// Session is opaque to the rest of the system: flows only trigger its
// creation and hand the ID back for the cookie.
type Session struct {
	SessionID string
	AccountID string
	Remember  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store defines how sessions are persisted. Implementations stay
// stateless; expiry belongs to the record, not the store.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

const (
	// Remembered logins persist for two weeks, others for two days.
	rememberTTL = 14 * 24 * time.Hour
	shortTTL    = 2 * 24 * time.Hour
)

// Manager bundles ID generation, TTL policy and the store.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Establish creates and persists a fresh session for the account.
func (m *Manager) Establish(ctx context.Context, accountID string, remember bool) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	ttl := shortTTL
	if remember {
		ttl = rememberTTL
	}

	now := time.Now()
	s := Session{
		SessionID: id,
		AccountID: accountID,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the live session for the ID, or nil when it is unknown
// or expired.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil || s == nil {
		return nil, err
	}
	if time.Now().After(s.ExpiresAt) {
		_ = m.store.Delete(ctx, sessionID)
		return nil, nil
	}
	return s, nil
}

func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}
