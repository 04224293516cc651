package resolver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/metrics"
)

// AccountResolver resolves identities against the account store.
type AccountResolver struct {
	accounts account.Store
	metrics  metrics.Recorder
}

func NewAccountResolver(accounts account.Store, rec metrics.Recorder) *AccountResolver {
	return &AccountResolver{accounts: accounts, metrics: rec}
}

// Resolve finds the account for the identity's email or creates one.
// "An account with this email already exists" is the success path, so
// two racing callbacks for the same email converge on one account.
func (r *AccountResolver) Resolve(ctx context.Context, identity *auth.Identity) (*account.Account, error) {
	if identity == nil {
		return nil, errors.New("resolver: identity is nil")
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))

	acct, err := r.accounts.FindByEmail(ctx, email)
	if err == nil {
		return r.link(ctx, acct, identity)
	}
	if !errors.Is(err, account.ErrNotFound) {
		return nil, fmt.Errorf("resolver: lookup by email: %w", err)
	}

	created, err := r.create(ctx, email, identity)
	if err == nil {
		return created, nil
	}

	// A concurrent callback won the create race; adopt its account.
	if errors.Is(err, account.ErrEmailExists) {
		acct, err := r.accounts.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolver: reread after duplicate create: %w", err)
		}
		return r.link(ctx, acct, identity)
	}
	return nil, err
}

func (r *AccountResolver) link(ctx context.Context, acct *account.Account, identity *auth.Identity) (*account.Account, error) {
	err := r.accounts.LinkProvider(ctx, acct.ID, identity.Provider, identity.Subject, identity.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("resolver: link provider: %w", err)
	}
	acct.Provider = identity.Provider
	acct.Subject = identity.Subject
	if identity.AvatarURL != "" {
		acct.AvatarURL = identity.AvatarURL
	}
	return acct, nil
}

func (r *AccountResolver) create(ctx context.Context, email string, identity *auth.Identity) (*account.Account, error) {
	// Login-handle collisions can also race; a few attempts with a
	// freshly derived handle cover that without looping forever.
	for attempt := 0; attempt < 3; attempt++ {
		login, err := account.DeriveLogin(ctx, r.accounts, email)
		if err != nil {
			return nil, err
		}

		display := identity.DisplayName
		if display == "" {
			display = login
		}

		acct, err := r.accounts.Create(ctx, account.New{
			Login:       login,
			Email:       email,
			DisplayName: display,
			// The account is provider-backed; the password exists only so
			// the credential slot is never empty. It is never surfaced and
			// only a password reset can make it usable.
			Password:  randomPassword(),
			Role:      account.RoleMember,
			Provider:  identity.Provider,
			Subject:   identity.Subject,
			AvatarURL: identity.AvatarURL,
		})
		if errors.Is(err, account.ErrLoginExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// A link is a returning user; only a create is a signup.
		r.metrics.RecordSignup(identity.Provider)
		return acct, nil
	}
	return nil, errors.New("resolver: could not derive a free login handle")
}

func randomPassword() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawStdEncoding.EncodeToString(b)
}
