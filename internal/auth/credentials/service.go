// Package credentials implements the local account flows: login,
// signup, password reset and profile updates. External identities never
// pass through here; that is the resolver's job.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/logger"
	sitemail "github.com/mo-sawah/sawah-register/internal/mail"
	"github.com/mo-sawah/sawah-register/internal/metrics"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/session"
	"github.com/mo-sawah/sawah-register/internal/state"
)

const (
	minPasswordLen = 8

	resetKeyTTL    = 24 * time.Hour
	resetKeyPrefix = "reset:"
)

type Service struct {
	accounts account.Store
	sessions *session.Manager
	states   state.Store
	mailer   sitemail.Mailer
	pages    *pages.Map
	metrics  metrics.Recorder
	siteName string
}

func NewService(
	accounts account.Store,
	sessions *session.Manager,
	states state.Store,
	mailer sitemail.Mailer,
	pageMap *pages.Map,
	rec metrics.Recorder,
	siteName string,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		states:   states,
		mailer:   mailer,
		pages:    pageMap,
		metrics:  rec,
		siteName: siteName,
	}
}

// Login verifies the identifier (login handle or email) and password
// and establishes a session. The failure never says which of the two
// was wrong.
func (s *Service) Login(ctx context.Context, identifier, password string, remember bool) (*session.Session, error) {
	acct, err := s.accounts.VerifyCredential(ctx, strings.TrimSpace(identifier), password)
	if err != nil {
		s.metrics.RecordLoginFailure("password")
		return nil, auth.ErrInvalidCredentials
	}

	sess, err := s.sessions.Establish(ctx, acct.ID.String(), remember)
	if err != nil {
		return nil, fmt.Errorf("credentials: establish session: %w", err)
	}
	s.metrics.RecordLogin("password")
	return sess, nil
}

// Signup creates a local account and logs it in.
func (s *Service) Signup(ctx context.Context, email, displayName, password string) (*account.Account, *session.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !validEmail(email) {
		return nil, nil, auth.ErrInvalidEmail
	}
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, nil, auth.ErrEmailTaken
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, nil, fmt.Errorf("credentials: lookup email: %w", err)
	}
	if len(password) < minPasswordLen {
		return nil, nil, auth.ErrWeakPassword
	}

	login, err := account.DeriveLogin(ctx, s.accounts, email)
	if err != nil {
		return nil, nil, err
	}
	if displayName == "" {
		displayName = login
	}

	acct, err := s.accounts.Create(ctx, account.New{
		Login:       login,
		Email:       email,
		DisplayName: displayName,
		Password:    password,
		Role:        account.RoleMember,
	})
	if errors.Is(err, account.ErrEmailExists) {
		return nil, nil, auth.ErrEmailTaken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: create account: %w", err)
	}

	sess, err := s.sessions.Establish(ctx, acct.ID.String(), true)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: establish session: %w", err)
	}
	s.metrics.RecordSignup("password")
	return acct, sess, nil
}

// resetPayload binds a reset key to the account it was issued for.
type resetPayload struct {
	Login     string `json:"login"`
	AccountID string `json:"account_id"`
}

// RequestReset issues a single-use reset key and mails the link. The
// outcome is identical whether or not the email has an account, so the
// endpoint cannot be used to enumerate addresses.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return auth.ErrInvalidEmail
	}

	acct, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credentials: lookup email: %w", err)
	}

	key, err := state.NewToken()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(resetPayload{
		Login:     acct.Login,
		AccountID: acct.ID.String(),
	})
	if err != nil {
		return fmt.Errorf("credentials: marshal reset payload: %w", err)
	}
	if err := s.states.Put(ctx, resetKeyPrefix+key, payload, resetKeyTTL); err != nil {
		return fmt.Errorf("credentials: store reset key: %w", err)
	}

	link := pages.WithQueries(s.pages.Lost(), map[string]string{
		"key":   key,
		"login": acct.Login,
	})

	subject := fmt.Sprintf("[%s] Password Reset", s.siteName)
	body := "Someone requested a password reset for your account.\n\n" +
		"Reset your password here:\n" + link + "\n\n" +
		"If you did not request this, you can ignore this email."

	if err := s.mailer.Send(ctx, acct.Email, subject, body); err != nil {
		// The caller still reports success; a mail outage must not
		// confirm that the address exists.
		logger.Error("reset mail dispatch failed", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	s.metrics.RecordResetRequested()
	return nil
}

// CompleteReset replaces the credential if the key validates against
// the login handle. The password checks run before the key is taken so
// a typo in the confirmation does not burn the link.
func (s *Service) CompleteReset(ctx context.Context, login, key, password, confirm string) error {
	if login == "" || key == "" {
		return auth.ErrInvalidResetKey
	}
	if len(password) < minPasswordLen {
		return auth.ErrWeakPassword
	}
	if password != confirm {
		return auth.ErrPasswordMismatch
	}

	payload, ok, err := s.states.Take(ctx, resetKeyPrefix+key)
	if err != nil {
		return fmt.Errorf("credentials: take reset key: %w", err)
	}
	if !ok {
		return auth.ErrInvalidResetKey
	}

	var rp resetPayload
	if err := json.Unmarshal(payload, &rp); err != nil || rp.Login != login {
		return auth.ErrInvalidResetKey
	}

	id, err := uuid.Parse(rp.AccountID)
	if err != nil {
		return auth.ErrInvalidResetKey
	}
	if err := s.accounts.SetPassword(ctx, id, password); err != nil {
		return fmt.Errorf("credentials: set password: %w", err)
	}
	s.metrics.RecordResetCompleted()
	return nil
}

// UpdateProfile applies a partial profile update. A password change
// re-establishes the session; the fresh session is returned so the
// caller can replace the cookie.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, displayName, newPassword, confirm string) (*session.Session, error) {
	if displayName != "" {
		up := account.ProfileUpdate{DisplayName: &displayName}
		if err := s.accounts.UpdateProfile(ctx, accountID, up); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return nil, auth.ErrNotAuthenticated
			}
			return nil, fmt.Errorf("credentials: update profile: %w", err)
		}
	}

	if newPassword == "" && confirm == "" {
		return nil, nil
	}

	if len(newPassword) < minPasswordLen {
		return nil, auth.ErrWeakPassword
	}
	if newPassword != confirm {
		return nil, auth.ErrPasswordMismatch
	}
	if err := s.accounts.SetPassword(ctx, accountID, newPassword); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, auth.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("credentials: set password: %w", err)
	}

	sess, err := s.sessions.Establish(ctx, accountID.String(), true)
	if err != nil {
		return nil, fmt.Errorf("credentials: establish session: %w", err)
	}
	return sess, nil
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
