package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
)

// Success codes the surfaces announce after a completed form post.
var successMessages = map[string]string{
	"check_email":     "Please check your email for the password reset link.",
	"password_reset":  "Your password has been reset. Please login.",
	"profile_updated": "Your profile has been updated.",
}

type viewAccount struct {
	Login       string `json:"login"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

type viewProvider struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type viewState struct {
	Authenticated bool              `json:"authenticated"`
	Account       *viewAccount      `json:"account,omitempty"`
	Error         string            `json:"error,omitempty"`
	Success       string            `json:"success,omitempty"`
	Providers     []viewProvider    `json:"providers"`
	Nonces        map[string]string `json:"nonces"`
	RedirectTo    string            `json:"redirect_to,omitempty"`
}

// ViewState returns everything the renderer needs to draw an auth
// surface: who is signed in, the message for a carried error or success
// code, the provider start URLs, and the form tokens.
func (h *Handler) ViewState(c *gin.Context) {
	state := viewState{
		Providers: []viewProvider{},
		Nonces:    map[string]string{},
	}

	if code := c.Query("error"); code != "" {
		state.Error = auth.MessageForCode(code)
	}
	if code := c.Query("success"); code != "" {
		state.Success = successMessages[code]
	}
	if dest, ok := h.redirects.Validate(c.Query("redirect_to")); ok {
		state.RedirectTo = dest
	}

	if id, ok := middleware.CurrentAccountID(c); ok {
		if acct, err := h.accounts.FindByID(c.Request.Context(), id); err == nil {
			state.Authenticated = true
			state.Account = &viewAccount{
				Login:       acct.Login,
				Email:       acct.Email,
				DisplayName: acct.DisplayName,
				AvatarURL:   acct.AvatarURL,
				Provider:    acct.Provider,
			}
			// A signed-in visitor has no business on the login or signup
			// surface; tell the renderer where to send them.
			if state.RedirectTo == "" {
				state.RedirectTo = h.pages.Profile()
			}
		}
	}

	for _, name := range h.providers.Names() {
		startURL := "/auth/" + name
		if state.RedirectTo != "" {
			startURL = pages.WithQuery(startURL, "redirect_to", state.RedirectTo)
		}
		state.Providers = append(state.Providers, viewProvider{Name: name, URL: startURL})
	}

	subject := h.nonceSubject(c)
	for _, action := range []string{"login", "signup", "profile_update", "lost_request", "reset_password"} {
		state.Nonces[action] = h.nonces.Issue(action, subject)
	}

	c.JSON(http.StatusOK, state)
}
