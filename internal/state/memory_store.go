package state

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process store. It serves tests and
// single-node deployments without Redis. Expiry is enforced lazily at
// read time; Take under the lock gives the at-most-once guarantee.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		payload:   payload,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(m.entries, key)

	if m.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.payload, true, nil
}

// SetClock overrides the time source. Tests only.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
