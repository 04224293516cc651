// Package nonce issues and verifies short-lived form tokens that bind a
// POST to the session that rendered the form.
//
// A token is an HMAC over the action name, the session identifier, and a
// coarse time window. Verification accepts the current window and the one
// before it, so a form rendered just before a window boundary still
// submits cleanly. Tokens are stateless: nothing is stored server-side.
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// window is half the effective token lifetime: a token minted at the
// very start of a window stays valid for two full windows.
const window = 12 * time.Hour

// Issuer mints and checks form tokens with a site-wide secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Issue returns the token for an action in the current time window. The
// session ID ties the token to the browser that rendered the form; an
// anonymous surface passes its anonymous session marker instead.
func (i *Issuer) Issue(action, sessionID string) string {
	return i.tokenAt(action, sessionID, i.tick(0))
}

// Verify reports whether the token was issued for this action and
// session within the last two time windows.
func (i *Issuer) Verify(token, action, sessionID string) bool {
	if token == "" {
		return false
	}
	for _, tick := range []int64{i.tick(0), i.tick(-1)} {
		want := i.tokenAt(action, sessionID, tick)
		if hmac.Equal([]byte(token), []byte(want)) {
			return true
		}
	}
	return false
}

func (i *Issuer) tick(offset int64) int64 {
	return i.now().Unix()/int64(window.Seconds()) + offset
}

func (i *Issuer) tokenAt(action, sessionID string, tick int64) string {
	mac := hmac.New(sha256.New, i.secret)
	fmt.Fprintf(mac, "%d|%s|%s", tick, action, sessionID)
	// 10 hex chars keep the hidden field short; brute force is bounded
	// by the window, not the digest length.
	return hex.EncodeToString(mac.Sum(nil))[:10]
}
