package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/auth/credentials"
	"github.com/mo-sawah/sawah-register/internal/auth/flow"
	"github.com/mo-sawah/sawah-register/internal/auth/nonce"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
	"github.com/mo-sawah/sawah-register/internal/auth/resolver"
	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/metrics"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/redirect"
	"github.com/mo-sawah/sawah-register/internal/session"
	"github.com/mo-sawah/sawah-register/internal/state"
)

type stubAdapter struct {
	name     string
	identity *auth.Identity
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (s *stubAdapter) ExchangeCode(context.Context, string) (string, error) {
	return "access-token", nil
}

func (s *stubAdapter) FetchProfile(context.Context, string) (*auth.Identity, error) {
	return s.identity, nil
}

type nullMailer struct{}

func (nullMailer) Send(context.Context, string, string, string) error { return nil }

type env struct {
	router   *gin.Engine
	accounts *account.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pm, err := pages.New("https://example.com", config.Pages{
		Login:   "/login/",
		Signup:  "/signup/",
		Profile: "/profile/",
		Lost:    "/lost-password/",
	})
	require.NoError(t, err)
	redirects, err := redirect.New("https://example.com", pm, redirect.PolicyProfile)
	require.NoError(t, err)

	accounts := account.NewMemoryStore()
	states := state.NewMemoryStore()
	sessions := session.NewManager(session.NewMemoryStore())
	registry := provider.NewRegistry(&stubAdapter{
		name: "google",
		identity: &auth.Identity{
			Provider:      "google",
			Subject:       "sub-1",
			Email:         "carol@x.com",
			EmailVerified: true,
			DisplayName:   "Carol",
		},
	})

	fl := flow.New(registry, resolver.NewAccountResolver(accounts, metrics.Noop{}), sessions, states, redirects, metrics.Noop{})
	creds := credentials.NewService(accounts, sessions, states, nullMailer{}, pm, metrics.Noop{}, "Example Site")

	h := New(
		fl, creds, accounts, registry, sessions,
		nonce.NewIssuer("form-secret"),
		pm, redirects,
		session.CookieOptions{Secure: true},
	)

	router := gin.New()
	h.RegisterRoutes(router, middleware.NewSessions(sessions))
	return &env{router: router, accounts: accounts}
}

func (e *env) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) viewState(t *testing.T, path string, cookies []*http.Cookie) viewState {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := e.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)

	var vs viewState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vs))
	return vs
}

func (e *env) postForm(t *testing.T, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/account/form", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(t, req)
}

func location(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func TestStartOAuthRedirectsToProvider(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	loc := location(t, w)

	assert.Equal(t, "provider.test", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("state"))
}

func TestStartOAuthUnknownProviderRendersPlainText(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/auth/twitter", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestOAuthRoundTripSignsIn(t *testing.T) {
	e := newEnv(t)

	start := e.do(t, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	stateParam := location(t, start).Query().Get("state")

	cb := e.do(t, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=code-1&state="+url.QueryEscape(stateParam), nil))
	loc := location(t, cb)
	assert.Equal(t, "https://example.com/profile/", loc.String())

	cookies := cb.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, session.CookieName, cookies[0].Name)

	vs := e.viewState(t, "/account/view", cookies)
	assert.True(t, vs.Authenticated)
	require.NotNil(t, vs.Account)
	assert.Equal(t, "carol", vs.Account.Login)
	assert.Equal(t, "google", vs.Account.Provider)
}

func TestCallbackProviderDenialLandsOnLogin(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?error=access_denied", nil))
	loc := location(t, w)

	assert.Equal(t, "/login/", loc.Path)
	assert.Equal(t, "provider_denied", loc.Query().Get("error"))
}

func TestFormLoginRejectsMissingNonce(t *testing.T) {
	e := newEnv(t)

	w := e.postForm(t, url.Values{
		"sr_action": {"login"},
		"login":     {"carol"},
		"password":  {"whatever1"},
	}, nil)

	assert.Equal(t, "invalid_nonce", location(t, w).Query().Get("error"))
}

func TestSignupThenLoginViaForms(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view", nil)
	w := e.postForm(t, url.Values{
		"sr_action":    {"signup"},
		"_sr_nonce":    {vs.Nonces["signup"]},
		"email":        {"dora@x.com"},
		"display_name": {"Dora"},
		"password":     {"longenough"},
	}, nil)

	assert.Equal(t, "https://example.com/profile/", location(t, w).String())
	require.NotEmpty(t, w.Result().Cookies())

	vs = e.viewState(t, "/account/view", nil)
	w = e.postForm(t, url.Values{
		"sr_action": {"login"},
		"_sr_nonce": {vs.Nonces["login"]},
		"login":     {"dora"},
		"password":  {"longenough"},
		"remember":  {"1"},
	}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	require.NotEmpty(t, w.Result().Cookies())
}

func TestFormLoginFailureCarriesCode(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view", nil)
	w := e.postForm(t, url.Values{
		"sr_action": {"login"},
		"_sr_nonce": {vs.Nonces["login"]},
		"login":     {"nobody"},
		"password":  {"whatever1"},
	}, nil)

	loc := location(t, w)
	assert.Equal(t, "/login/", loc.Path)
	assert.Equal(t, "invalid_credentials", loc.Query().Get("error"))
}

func TestProfileUpdateRequiresSession(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view", nil)
	w := e.postForm(t, url.Values{
		"sr_action":    {"profile_update"},
		"_sr_nonce":    {vs.Nonces["profile_update"]},
		"display_name": {"Mallory"},
	}, nil)

	assert.Equal(t, "not_authenticated", location(t, w).Query().Get("error"))
}

func TestProfileUpdateChangesDisplayName(t *testing.T) {
	e := newEnv(t)

	// Sign up to get a session cookie.
	vs := e.viewState(t, "/account/view", nil)
	signup := e.postForm(t, url.Values{
		"sr_action": {"signup"},
		"_sr_nonce": {vs.Nonces["signup"]},
		"email":     {"erin@x.com"},
		"password":  {"longenough"},
	}, nil)
	cookies := signup.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Nonces for a signed-in visitor bind to the session.
	vs = e.viewState(t, "/account/view", cookies)
	w := e.postForm(t, url.Values{
		"sr_action":    {"profile_update"},
		"_sr_nonce":    {vs.Nonces["profile_update"]},
		"display_name": {"Erin Q"},
	}, cookies)

	loc := location(t, w)
	assert.Equal(t, "/profile/", loc.Path)
	assert.Equal(t, "profile_updated", loc.Query().Get("success"))

	vs = e.viewState(t, "/account/view", cookies)
	require.NotNil(t, vs.Account)
	assert.Equal(t, "Erin Q", vs.Account.DisplayName)
}

func TestLostRequestAlwaysReportsSuccess(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view", nil)
	w := e.postForm(t, url.Values{
		"sr_action": {"lost_request"},
		"_sr_nonce": {vs.Nonces["lost_request"]},
		"email":     {"ghost@x.com"},
	}, nil)

	loc := location(t, w)
	assert.Equal(t, "/lost-password/", loc.Path)
	assert.Equal(t, "check_email", loc.Query().Get("success"))
}

func TestViewStateTranslatesCodes(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view?error=invalid_credentials&success=password_reset", nil)
	assert.Equal(t, "Invalid username or password.", vs.Error)
	assert.Equal(t, "Your password has been reset. Please login.", vs.Success)
	assert.False(t, vs.Authenticated)

	// Tampered codes never echo back as text.
	vs = e.viewState(t, "/account/view?error=%3Cscript%3E", nil)
	assert.Equal(t, "Something went wrong. Please try again.", vs.Error)
}

func TestViewStateListsProviderStartURLs(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view?redirect_to=/reader/", nil)
	require.Len(t, vs.Providers, 1)
	assert.Equal(t, "google", vs.Providers[0].Name)
	assert.Contains(t, vs.Providers[0].URL, "/auth/google")
	assert.Contains(t, vs.Providers[0].URL, "redirect_to=")
}

func TestLogoutClearsSession(t *testing.T) {
	e := newEnv(t)

	vs := e.viewState(t, "/account/view", nil)
	signup := e.postForm(t, url.Values{
		"sr_action": {"signup"},
		"_sr_nonce": {vs.Nonces["signup"]},
		"email":     {"frank@x.com"},
		"password":  {"longenough"},
	}, nil)
	cookies := signup.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := e.do(t, req)
	assert.Equal(t, http.StatusFound, w.Code)

	// The old session ID no longer authenticates.
	vs = e.viewState(t, "/account/view", cookies)
	assert.False(t, vs.Authenticated)
}
