package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RoleMember is the minimal-privilege role assigned to every account
// created through signup or OAuth login.
const RoleMember = "member"

type Account struct {
	ID          uuid.UUID
	Login       string // unique handle derived from the email local part
	Email       string
	DisplayName string
	Role        string
	Provider    string // last external provider used, "" for local-only
	Subject     string // provider-scoped user id
	AvatarURL   string
	CreatedAt   time.Time
}

// New describes an account to create. Password is plaintext; the store
// hashes it and never returns it.
type New struct {
	Login       string
	Email       string
	DisplayName string
	Password    string
	Role        string
	Provider    string
	Subject     string
	AvatarURL   string
}

type ProfileUpdate struct {
	DisplayName *string
}

var (
	ErrNotFound           = errors.New("account: not found")
	ErrEmailExists        = errors.New("account: email already exists")
	ErrLoginExists        = errors.New("account: login already exists")
	ErrCredentialMismatch = errors.New("account: credential mismatch")
)

// Store is the account collaborator contract. Implementations own the
// password credential; callers only ever pass plaintext in and get
// accounts back.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)

	// Create returns ErrEmailExists when the email is already registered,
	// including when a concurrent create won the race.
	Create(ctx context.Context, n New) (*Account, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, up ProfileUpdate) error

	// LinkProvider records provider-link metadata without touching the
	// role or credential.
	LinkProvider(ctx context.Context, id uuid.UUID, provider, subject, avatarURL string) error

	// VerifyCredential checks identifier (login handle or email) plus
	// password. Unknown identifier and wrong password both return
	// ErrCredentialMismatch.
	VerifyCredential(ctx context.Context, identifier, password string) (*Account, error)

	SetPassword(ctx context.Context, id uuid.UUID, password string) error
}
