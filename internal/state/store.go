package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Store holds short-lived payloads keyed by opaque random tokens. It
// backs the OAuth CSRF state and password-reset keys.
//
// Take is the single concurrency contract of the whole service: it must
// read and delete atomically, so that of two racing callers exactly one
// observes the payload. Expired entries behave like absent ones.
type Store interface {
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

// NewToken returns a 256-bit random token, URL-safe.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
