package resolver

import (
	"context"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
)

// Resolver determines which local account a verified external identity
// belongs to, creating one when needed. It is the only place where
// identity-to-account mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (*account.Account, error)
}
