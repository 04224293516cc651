// Package flow orchestrates the two legs of an OAuth sign-in: the
// redirect out to the provider and the callback that turns the returned
// code into a local session.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
	"github.com/mo-sawah/sawah-register/internal/auth/resolver"
	"github.com/mo-sawah/sawah-register/internal/metrics"
	"github.com/mo-sawah/sawah-register/internal/redirect"
	"github.com/mo-sawah/sawah-register/internal/session"
	"github.com/mo-sawah/sawah-register/internal/state"
)

const (
	stateKeyPrefix = "oauth:"
	stateTTL       = 15 * time.Minute
)

// pendingState is what the state token points at between the two legs.
// The provider name is rechecked on callback so a token minted for one
// provider cannot complete a sign-in with another.
type pendingState struct {
	Provider   string    `json:"provider"`
	RedirectTo string    `json:"redirect_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Result is a completed sign-in: the session to set and where to send
// the browser.
type Result struct {
	Account     *account.Account
	Session     *session.Session
	RedirectURL string
}

type Flow struct {
	providers *provider.Registry
	resolver  resolver.Resolver
	sessions  *session.Manager
	states    state.Store
	redirects *redirect.Resolver
	metrics   metrics.Recorder
}

func New(
	providers *provider.Registry,
	res resolver.Resolver,
	sessions *session.Manager,
	states state.Store,
	redirects *redirect.Resolver,
	rec metrics.Recorder,
) *Flow {
	return &Flow{
		providers: providers,
		resolver:  res,
		sessions:  sessions,
		states:    states,
		redirects: redirects,
		metrics:   rec,
	}
}

// Start mints a single-use state token, parks the requested destination
// behind it, and returns the provider's authorization URL.
func (f *Flow) Start(ctx context.Context, providerName, redirectTo string) (string, error) {
	adapter, err := f.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	// Only a destination that passes the same-site check is worth
	// carrying across the round trip.
	if redirectTo != "" {
		if clean, ok := f.redirects.Validate(redirectTo); ok {
			redirectTo = clean
		} else {
			redirectTo = ""
		}
	}

	token, err := state.NewToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(pendingState{
		Provider:   providerName,
		RedirectTo: redirectTo,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("flow: marshal state: %w", err)
	}
	if err := f.states.Put(ctx, stateKeyPrefix+token, payload, stateTTL); err != nil {
		return "", fmt.Errorf("flow: store state: %w", err)
	}

	f.metrics.RecordOAuthStart(providerName)
	return adapter.AuthCodeURL(token), nil
}

// Callback completes the sign-in. The checks run strictly in this
// order: provider-reported error, missing parameters, state validity,
// code exchange, profile fetch, email policy. The state token is
// consumed on first read, so a replayed callback fails at the state
// check no matter what else it carries.
func (f *Flow) Callback(ctx context.Context, providerName, code, stateToken, providerErr, referrer string) (*Result, error) {
	adapter, err := f.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	if providerErr != "" {
		f.metrics.RecordOAuthFailure(providerName, "denied")
		return nil, auth.ErrProviderDenied.Wrap(errors.New(providerErr))
	}
	if code == "" || stateToken == "" {
		f.metrics.RecordOAuthFailure(providerName, "missing_params")
		return nil, auth.ErrMissingParams
	}

	payload, ok, err := f.states.Take(ctx, stateKeyPrefix+stateToken)
	if err != nil {
		return nil, fmt.Errorf("flow: take state: %w", err)
	}
	var pending pendingState
	if !ok || json.Unmarshal(payload, &pending) != nil || pending.Provider != providerName {
		f.metrics.RecordOAuthFailure(providerName, "state")
		return nil, auth.ErrInvalidState
	}

	accessToken, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		f.metrics.RecordOAuthFailure(providerName, "exchange")
		return nil, auth.ErrUpstreamAuth.Wrap(err)
	}
	identity, err := adapter.FetchProfile(ctx, accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrEmailMissing) {
			f.metrics.RecordOAuthFailure(providerName, "no_email")
			return nil, auth.ErrEmailMissing
		}
		f.metrics.RecordOAuthFailure(providerName, "profile")
		return nil, auth.ErrUpstreamAuth.Wrap(err)
	}
	if !identity.EmailVerified {
		f.metrics.RecordOAuthFailure(providerName, "unverified_email")
		return nil, auth.ErrEmailNotVerified
	}

	acct, err := f.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("flow: resolve account: %w", err)
	}
	sess, err := f.sessions.Establish(ctx, acct.ID.String(), true)
	if err != nil {
		return nil, fmt.Errorf("flow: establish session: %w", err)
	}

	f.metrics.RecordLogin(providerName)
	return &Result{
		Account:     acct,
		Session:     sess,
		RedirectURL: f.redirects.Resolve(pending.RedirectTo, referrer),
	}, nil
}
