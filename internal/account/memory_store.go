package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRecord struct {
	acct Account
	hash string
}

// MemoryStore keeps accounts in process memory. Used by tests and as a
// stand-in when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*memoryRecord)}
}

func (m *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[id]; ok {
		a := r.acct
		return &a, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByEmailLocked(email)
}

func (m *MemoryStore) findByEmailLocked(email string) (*Account, error) {
	for _, r := range m.records {
		if strings.EqualFold(r.acct.Email, email) {
			a := r.acct
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByLogin(_ context.Context, login string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.acct.Login == login {
			a := r.acct
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Create(_ context.Context, n New) (*Account, error) {
	hash, err := HashPassword(n.Password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if strings.EqualFold(r.acct.Email, n.Email) {
			return nil, ErrEmailExists
		}
		if r.acct.Login == n.Login {
			return nil, ErrLoginExists
		}
	}

	role := n.Role
	if role == "" {
		role = RoleMember
	}

	acct := Account{
		ID:          uuid.New(),
		Login:       n.Login,
		Email:       n.Email,
		DisplayName: n.DisplayName,
		Role:        role,
		Provider:    n.Provider,
		Subject:     n.Subject,
		AvatarURL:   n.AvatarURL,
		CreatedAt:   time.Now(),
	}
	m.records[acct.ID] = &memoryRecord{acct: acct, hash: hash}

	a := acct
	return &a, nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id uuid.UUID, up ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if up.DisplayName != nil {
		r.acct.DisplayName = *up.DisplayName
	}
	return nil
}

func (m *MemoryStore) LinkProvider(_ context.Context, id uuid.UUID, provider, subject, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	r.acct.Provider = provider
	r.acct.Subject = subject
	if avatarURL != "" {
		r.acct.AvatarURL = avatarURL
	}
	return nil
}

func (m *MemoryStore) VerifyCredential(_ context.Context, identifier, password string) (*Account, error) {
	m.mu.Lock()
	var match *memoryRecord
	for _, r := range m.records {
		if r.acct.Login == identifier || strings.EqualFold(r.acct.Email, identifier) {
			match = r
			break
		}
	}
	m.mu.Unlock()

	if match == nil {
		return nil, ErrCredentialMismatch
	}
	if err := VerifyPassword(match.hash, password); err != nil {
		return nil, ErrCredentialMismatch
	}
	a := match.acct
	return &a, nil
}

func (m *MemoryStore) SetPassword(_ context.Context, id uuid.UUID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	r.hash = hash
	return nil
}
