package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DeriveLogin turns an email into an unused login handle: the sanitized
// local part, with a numeric suffix appended on collision
// ("alice", "alice1", "alice2", ...).
func DeriveLogin(ctx context.Context, s Store, email string) (string, error) {
	base := sanitizeLogin(localPart(email))
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; ; i++ {
		_, err := s.FindByLogin(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("derive login: %w", err)
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func localPart(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at]
}

func sanitizeLogin(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
