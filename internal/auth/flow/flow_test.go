package flow

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
	"github.com/mo-sawah/sawah-register/internal/auth/resolver"
	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/metrics"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/redirect"
	"github.com/mo-sawah/sawah-register/internal/session"
	"github.com/mo-sawah/sawah-register/internal/state"
)

type fakeAdapter struct {
	name        string
	identity    *auth.Identity
	exchangeErr error
	profileErr  error

	exchanged []string
	fetched   []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAdapter) ExchangeCode(_ context.Context, code string) (string, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "token-for-" + code, nil
}

func (f *fakeAdapter) FetchProfile(_ context.Context, token string) (*auth.Identity, error) {
	f.fetched = append(f.fetched, token)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.identity, nil
}

type fixture struct {
	flow     *Flow
	adapter  *fakeAdapter
	accounts *account.MemoryStore
	states   *state.MemoryStore
}

func newFixture(t *testing.T, identity *auth.Identity) *fixture {
	t.Helper()

	pm, err := pages.New("https://example.com", config.Pages{
		Login:   "/login/",
		Signup:  "/signup/",
		Profile: "/profile/",
		Lost:    "/lost-password/",
	})
	require.NoError(t, err)
	redirects, err := redirect.New("https://example.com", pm, redirect.PolicyProfile)
	require.NoError(t, err)

	f := &fixture{
		adapter:  &fakeAdapter{name: "google", identity: identity},
		accounts: account.NewMemoryStore(),
		states:   state.NewMemoryStore(),
	}
	f.flow = New(
		provider.NewRegistry(f.adapter),
		resolver.NewAccountResolver(f.accounts, metrics.Noop{}),
		session.NewManager(session.NewMemoryStore()),
		f.states,
		redirects,
		metrics.Noop{},
	)
	return f
}

func verifiedIdentity() *auth.Identity {
	return &auth.Identity{
		Provider:      "google",
		Subject:       "sub-123",
		Email:         "a@b.com",
		EmailVerified: true,
		DisplayName:   "Ada B",
	}
}

// stateFrom pulls the state token back out of the authorization URL.
func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	s := u.Query().Get("state")
	require.NotEmpty(t, s)
	return s
}

func TestStartUnknownProvider(t *testing.T) {
	f := newFixture(t, verifiedIdentity())

	_, err := f.flow.Start(context.Background(), "facebook", "")
	assert.ErrorIs(t, err, auth.ErrProviderNotConfigured)
}

func TestStartDropsUnsafeDestination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verifiedIdentity())

	authURL, err := f.flow.Start(ctx, "google", "https://evil.test/phish")
	require.NoError(t, err)

	res, err := f.flow.Callback(ctx, "google", "code-1", stateFrom(t, authURL), "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/profile/", res.RedirectURL,
		"foreign destination falls back to the policy default")
}

func TestFullSignInCreatesAccountAndSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verifiedIdentity())

	authURL, err := f.flow.Start(ctx, "google", "/reader/settings/")
	require.NoError(t, err)

	res, err := f.flow.Callback(ctx, "google", "code-1", stateFrom(t, authURL), "", "")
	require.NoError(t, err)

	assert.Equal(t, "a", res.Account.Login)
	assert.Equal(t, "a@b.com", res.Account.Email)
	assert.Equal(t, "google", res.Account.Provider)
	require.NotNil(t, res.Session)
	assert.Equal(t, res.Account.ID.String(), res.Session.AccountID)
	assert.Equal(t, "https://example.com/reader/settings/", res.RedirectURL)
	assert.Equal(t, []string{"code-1"}, f.adapter.exchanged)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verifiedIdentity())

	authURL, err := f.flow.Start(ctx, "google", "")
	require.NoError(t, err)
	st := stateFrom(t, authURL)

	_, err = f.flow.Callback(ctx, "google", "code-1", st, "", "")
	require.NoError(t, err)

	_, err = f.flow.Callback(ctx, "google", "code-2", st, "", "")
	assert.ErrorIs(t, err, auth.ErrInvalidState)
}

func TestCallbackRejectsStateFromAnotherProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verifiedIdentity())

	other := &fakeAdapter{name: "facebook", identity: verifiedIdentity()}
	f.flow.providers = provider.NewRegistry(f.adapter, other)

	authURL, err := f.flow.Start(ctx, "facebook", "")
	require.NoError(t, err)

	_, err = f.flow.Callback(ctx, "google", "code-1", stateFrom(t, authURL), "", "")
	assert.ErrorIs(t, err, auth.ErrInvalidState)
}

func TestCallbackShortCircuitsBeforeExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("provider denied", func(t *testing.T) {
		f := newFixture(t, verifiedIdentity())
		_, err := f.flow.Callback(ctx, "google", "code", "state", "access_denied", "")
		assert.ErrorIs(t, err, auth.ErrProviderDenied)
		assert.Empty(t, f.adapter.exchanged)
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t, verifiedIdentity())
		_, err := f.flow.Callback(ctx, "google", "", "state", "", "")
		assert.ErrorIs(t, err, auth.ErrMissingParams)
		assert.Empty(t, f.adapter.exchanged)
	})

	t.Run("unknown state", func(t *testing.T) {
		f := newFixture(t, verifiedIdentity())
		_, err := f.flow.Callback(ctx, "google", "code", "never-issued", "", "")
		assert.ErrorIs(t, err, auth.ErrInvalidState)
		assert.Empty(t, f.adapter.exchanged)
	})
}

func TestCallbackUpstreamFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("exchange fails", func(t *testing.T) {
		f := newFixture(t, verifiedIdentity())
		f.adapter.exchangeErr = errors.New("token endpoint: 502")

		authURL, err := f.flow.Start(ctx, "google", "")
		require.NoError(t, err)
		_, err = f.flow.Callback(ctx, "google", "code", stateFrom(t, authURL), "", "")
		assert.ErrorIs(t, err, auth.ErrUpstreamAuth)
		assert.Empty(t, f.adapter.fetched)
	})

	t.Run("profile reports missing email", func(t *testing.T) {
		f := newFixture(t, verifiedIdentity())
		f.adapter.profileErr = auth.ErrEmailMissing

		authURL, err := f.flow.Start(ctx, "google", "")
		require.NoError(t, err)
		_, err = f.flow.Callback(ctx, "google", "code", stateFrom(t, authURL), "", "")
		assert.ErrorIs(t, err, auth.ErrEmailMissing)
	})
}

func TestCallbackRejectsUnverifiedEmail(t *testing.T) {
	ctx := context.Background()
	id := verifiedIdentity()
	id.EmailVerified = false
	f := newFixture(t, id)

	authURL, err := f.flow.Start(ctx, "google", "")
	require.NoError(t, err)

	_, err = f.flow.Callback(ctx, "google", "code", stateFrom(t, authURL), "", "")
	assert.ErrorIs(t, err, auth.ErrEmailNotVerified)

	// No account was created for the rejected identity.
	_, err = f.accounts.FindByLogin(ctx, "a")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestRepeatSignInReusesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verifiedIdentity())

	for _, code := range []string{"code-1", "code-2"} {
		authURL, err := f.flow.Start(ctx, "google", "")
		require.NoError(t, err)
		_, err = f.flow.Callback(ctx, "google", code, stateFrom(t, authURL), "", "")
		require.NoError(t, err)
	}

	_, err := f.accounts.FindByLogin(ctx, "a1")
	assert.ErrorIs(t, err, account.ErrNotFound, "second sign-in links, it does not create")
}
