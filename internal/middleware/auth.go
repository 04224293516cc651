package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mo-sawah/sawah-register/internal/session"
)

const sessionContextKey = "auth_session"

// Sessions resolves the session cookie once per request and makes the
// result available to handlers.
type Sessions struct {
	manager *session.Manager
}

func NewSessions(manager *session.Manager) *Sessions {
	return &Sessions{manager: manager}
}

// Identify attaches the caller's live session to the request, if any.
// Anonymous requests pass through untouched; the auth decision belongs
// to RequireAccount or the handler itself.
func (s *Sessions) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}
		sess, err := s.manager.Get(c.Request.Context(), cookie)
		if err == nil && sess != nil {
			c.Set(sessionContextKey, sess)
		}
		c.Next()
	}
}

// RequireAccount aborts with 401 unless Identify found a live session.
func (s *Sessions) RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentSession(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session Identify attached, if any.
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

// CurrentAccountID returns the authenticated account's ID.
func CurrentAccountID(c *gin.Context) (uuid.UUID, bool) {
	sess, ok := CurrentSession(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sess.AccountID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
