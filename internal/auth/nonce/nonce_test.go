package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	i := NewIssuer("secret")

	tok := i.Issue("login", "sess-1")
	assert.True(t, i.Verify(tok, "login", "sess-1"))
}

func TestVerifyRejectsWrongBinding(t *testing.T) {
	i := NewIssuer("secret")
	tok := i.Issue("login", "sess-1")

	assert.False(t, i.Verify(tok, "signup", "sess-1"), "different action")
	assert.False(t, i.Verify(tok, "login", "sess-2"), "different session")
	assert.False(t, i.Verify("", "login", "sess-1"), "empty token")

	other := NewIssuer("another secret")
	assert.False(t, other.Verify(tok, "login", "sess-1"), "different secret")
}

func TestVerifyAcceptsPreviousWindow(t *testing.T) {
	i := NewIssuer("secret")

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := base
	i.SetClock(func() time.Time { return now })

	tok := i.Issue("profile_update", "sess-1")

	now = base.Add(window - time.Minute)
	assert.True(t, i.Verify(tok, "profile_update", "sess-1"), "same window")

	now = base.Add(window + time.Minute)
	assert.True(t, i.Verify(tok, "profile_update", "sess-1"), "previous window")

	now = base.Add(2*window + time.Minute)
	assert.False(t, i.Verify(tok, "profile_update", "sess-1"), "expired")
}
