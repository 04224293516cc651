// Package handler exposes the auth service over HTTP. The HTML pages
// themselves live with the site renderer; this package only consumes
// form posts, drives the OAuth redirects, and serves the JSON view
// state the renderer reads.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth/credentials"
	"github.com/mo-sawah/sawah-register/internal/auth/flow"
	"github.com/mo-sawah/sawah-register/internal/auth/nonce"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/redirect"
	"github.com/mo-sawah/sawah-register/internal/session"
)

type Handler struct {
	flow      *flow.Flow
	creds     *credentials.Service
	accounts  account.Store
	providers *provider.Registry
	sessions  *session.Manager
	nonces    *nonce.Issuer
	pages     *pages.Map
	redirects *redirect.Resolver
	cookies   session.CookieOptions
}

func New(
	fl *flow.Flow,
	creds *credentials.Service,
	accounts account.Store,
	providers *provider.Registry,
	sessions *session.Manager,
	nonces *nonce.Issuer,
	pageMap *pages.Map,
	redirects *redirect.Resolver,
	cookies session.CookieOptions,
) *Handler {
	return &Handler{
		flow:      fl,
		creds:     creds,
		accounts:  accounts,
		providers: providers,
		sessions:  sessions,
		nonces:    nonces,
		pages:     pageMap,
		redirects: redirects,
		cookies:   cookies,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, sessions *middleware.Sessions) {
	r.Use(sessions.Identify())

	r.GET("/auth/:provider", h.StartOAuth)
	r.GET("/auth/:provider/callback", h.OAuthCallback)
	r.POST("/auth/logout", h.Logout)

	r.POST("/account/form", h.HandleForm)
	r.GET("/account/view", h.ViewState)
}

// Logout destroys the caller's session and clears the cookie. A request
// without a session still succeeds; logout is idempotent.
func (h *Handler) Logout(c *gin.Context) {
	if sess, ok := middleware.CurrentSession(c); ok {
		_ = h.sessions.Destroy(c.Request.Context(), sess.SessionID)
	}
	session.ClearCookie(c.Writer, h.cookies)
	c.Redirect(http.StatusFound, h.pages.Home())
}
