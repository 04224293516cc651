package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/logger"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/session"
)

// Form field names shared with the site renderer.
const (
	fieldAction = "sr_action"
	fieldNonce  = "_sr_nonce"
)

// anonNonceSubject stands in for the session ID on forms rendered to
// signed-out visitors.
const anonNonceSubject = "anon"

// HandleForm dispatches a posted auth form by its sr_action field.
// Every outcome is a redirect back to a page: success parameters on the
// destination, failure codes on the originating surface.
func (h *Handler) HandleForm(c *gin.Context) {
	action := c.PostForm(fieldAction)

	switch action {
	case "login":
		h.formLogin(c)
	case "signup":
		h.formSignup(c)
	case "profile_update":
		h.formProfileUpdate(c)
	case "lost_request":
		h.formLostRequest(c)
	case "reset_password":
		h.formResetPassword(c)
	default:
		c.String(http.StatusBadRequest, "unknown form action")
	}
}

func (h *Handler) formLogin(c *gin.Context) {
	if !h.checkNonce(c, "login") {
		h.failForm(c, "login", auth.ErrInvalidNonce, nil)
		return
	}

	remember := c.PostForm("remember") != ""
	sess, err := h.creds.Login(c.Request.Context(), c.PostForm("login"), c.PostForm("password"), remember)
	if err != nil {
		h.failForm(c, "login", err, nil)
		return
	}

	session.SetCookie(c.Writer, sess, h.cookies)
	c.Redirect(http.StatusFound, h.redirects.Resolve(c.PostForm("redirect_to"), c.Request.Referer()))
}

func (h *Handler) formSignup(c *gin.Context) {
	if !h.checkNonce(c, "signup") {
		h.failForm(c, "signup", auth.ErrInvalidNonce, nil)
		return
	}

	_, sess, err := h.creds.Signup(
		c.Request.Context(),
		c.PostForm("email"),
		c.PostForm("display_name"),
		c.PostForm("password"),
	)
	if err != nil {
		h.failForm(c, "signup", err, nil)
		return
	}

	session.SetCookie(c.Writer, sess, h.cookies)
	c.Redirect(http.StatusFound, h.redirects.Resolve(c.PostForm("redirect_to"), c.Request.Referer()))
}

func (h *Handler) formProfileUpdate(c *gin.Context) {
	accountID, ok := middleware.CurrentAccountID(c)
	if !ok {
		h.failForm(c, "login", auth.ErrNotAuthenticated, nil)
		return
	}
	if !h.checkNonce(c, "profile_update") {
		h.failForm(c, "profile", auth.ErrInvalidNonce, nil)
		return
	}

	sess, err := h.creds.UpdateProfile(
		c.Request.Context(),
		accountID,
		c.PostForm("display_name"),
		c.PostForm("new_password"),
		c.PostForm("confirm_password"),
	)
	if err != nil {
		h.failForm(c, "profile", err, nil)
		return
	}
	if sess != nil {
		// Password changed: the old session is gone, replace the cookie.
		session.SetCookie(c.Writer, sess, h.cookies)
	}
	c.Redirect(http.StatusFound, pages.WithQuery(h.pages.Profile(), "success", "profile_updated"))
}

func (h *Handler) formLostRequest(c *gin.Context) {
	if !h.checkNonce(c, "lost_request") {
		h.failForm(c, "lost", auth.ErrInvalidNonce, nil)
		return
	}

	err := h.creds.RequestReset(c.Request.Context(), c.PostForm("email"))
	if errors.Is(err, auth.ErrInvalidEmail) {
		h.failForm(c, "lost", err, nil)
		return
	}
	if err != nil {
		logger.Error("reset request failed", map[string]any{"error": err.Error()})
	}
	// Deliberately the same answer whether or not the address exists.
	c.Redirect(http.StatusFound, pages.WithQuery(h.pages.Lost(), "success", "check_email"))
}

func (h *Handler) formResetPassword(c *gin.Context) {
	login := c.PostForm("login")
	key := c.PostForm("key")
	// The key and login ride along on failure so the form can be
	// resubmitted without a fresh email.
	keep := map[string]string{"login": login, "key": key}

	if !h.checkNonce(c, "reset_password") {
		h.failForm(c, "lost", auth.ErrInvalidNonce, keep)
		return
	}

	err := h.creds.CompleteReset(c.Request.Context(), login, key, c.PostForm("password"), c.PostForm("confirm_password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidResetKey) {
			// A dead key cannot be retried; drop it from the redirect.
			keep = nil
		}
		h.failForm(c, "lost", err, keep)
		return
	}
	c.Redirect(http.StatusFound, pages.WithQuery(h.pages.Login(), "success", "password_reset"))
}

// checkNonce validates the form token against the action and the
// caller's session.
func (h *Handler) checkNonce(c *gin.Context, action string) bool {
	return h.nonces.Verify(c.PostForm(fieldNonce), action, h.nonceSubject(c))
}

func (h *Handler) nonceSubject(c *gin.Context) string {
	if sess, ok := middleware.CurrentSession(c); ok {
		return sess.SessionID
	}
	return anonNonceSubject
}

// failForm bounces back to the originating surface with the failure
// code and any fields worth preserving.
func (h *Handler) failForm(c *gin.Context, surface string, err error, keep map[string]string) {
	params := map[string]string{"error": auth.CodeFor(err)}
	for k, v := range keep {
		params[k] = v
	}
	c.Redirect(http.StatusFound, pages.WithQueries(h.pages.URLFor(surface), params))
}
