package provider

import (
	"context"
	"fmt"

	"github.com/mo-sawah/sawah-register/internal/auth"
)

// Adapter defines the contract every external auth provider must
// implement. Implementations return identity facts only and must not
// perform user creation, linking, or session management.
type Adapter interface {
	// Name returns the provider identifier (e.g. "google", "facebook").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL. The CSRF state
	// parameter is provided by the caller.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges the authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchProfile loads the provider's userinfo for the access token
	// and normalizes it. An identity without an email is an error.
	FetchProfile(ctx context.Context, accessToken string) (*auth.Identity, error)
}

// Error is an upstream provider failure carrying enough context to log
// and to compose a user-facing message without leaking the raw body.
type Error struct {
	Provider string
	Op       string // "exchange" or "profile"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
