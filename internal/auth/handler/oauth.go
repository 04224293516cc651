package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/logger"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/session"
)

// StartOAuth sends the browser to the provider's consent screen. A
// caller that is already signed in skips the provider entirely and goes
// straight to its destination.
func (h *Handler) StartOAuth(c *gin.Context) {
	providerName := c.Param("provider")
	redirectTo := c.Query("redirect_to")

	if _, ok := middleware.CurrentSession(c); ok {
		c.Redirect(http.StatusFound, h.redirects.Resolve(redirectTo, c.Request.Referer()))
		return
	}

	authURL, err := h.flow.Start(c.Request.Context(), providerName, redirectTo)
	if err != nil {
		h.failOAuth(c, providerName, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// OAuthCallback turns the provider's response into a session cookie.
func (h *Handler) OAuthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	res, err := h.flow.Callback(
		c.Request.Context(),
		providerName,
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
		c.Request.Referer(),
	)
	if err != nil {
		h.failOAuth(c, providerName, err)
		return
	}

	session.SetCookie(c.Writer, res.Session, h.cookies)
	c.Redirect(http.StatusFound, res.RedirectURL)
}

// failOAuth routes a failed leg to the right surface: configuration
// problems render plain text for the operator, everything else lands on
// the login page with a failure code the view endpoint translates.
func (h *Handler) failOAuth(c *gin.Context, providerName string, err error) {
	logger.Warn("oauth leg failed", map[string]any{
		"provider": providerName,
		"error":    err.Error(),
	})
	if auth.IsConfiguration(err) {
		c.String(http.StatusServiceUnavailable, "%s login is not configured on this site.", providerName)
		return
	}
	c.Redirect(http.StatusFound, pages.WithQuery(h.pages.Login(), "error", auth.CodeFor(err)))
}
