package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mo-sawah/sawah-register/internal/db"
)

const accountColumns = `
	id, login, email, display_name, role,
	provider, provider_subject, avatar_url, created_at
`

// PGStore is the Postgres-backed account store.
type PGStore struct {
	db *db.DB
}

func NewPGStore(db *db.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email))
}

func (s *PGStore) FindByLogin(ctx context.Context, login string) (*Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE login = $1
	`, login))
}

func (s *PGStore) Create(ctx context.Context, n New) (*Account, error) {
	hash, err := HashPassword(n.Password)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}

	role := n.Role
	if role == "" {
		role = RoleMember
	}

	acct, err := s.scanOne(s.db.QueryRowContext(ctx, `
		INSERT INTO accounts
			(login, email, display_name, password_hash, role,
			 provider, provider_subject, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+accountColumns+`
	`,
		n.Login, n.Email, n.DisplayName, hash, role,
		n.Provider, n.Subject, n.AvatarURL,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "accounts_login_unique" {
				return nil, ErrLoginExists
			}
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return acct, nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, id uuid.UUID, up ProfileUpdate) error {
	if up.DisplayName == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET display_name = $2, updated_at = NOW()
		WHERE id = $1
	`, id, *up.DisplayName)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) LinkProvider(ctx context.Context, id uuid.UUID, provider, subject, avatarURL string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET provider = $2,
		    provider_subject = $3,
		    avatar_url = CASE WHEN $4 <> '' THEN $4 ELSE avatar_url END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, provider, subject, avatarURL)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) VerifyCredential(ctx context.Context, identifier, password string) (*Account, error) {
	var hash string
	acct := &Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`, password_hash
		FROM accounts
		WHERE login = $1 OR LOWER(email) = LOWER($1)
	`, identifier).Scan(
		&acct.ID, &acct.Login, &acct.Email, &acct.DisplayName, &acct.Role,
		&acct.Provider, &acct.Subject, &acct.AvatarURL, &acct.CreatedAt,
		&hash,
	)
	if err != nil {
		// Unknown identifier and bad password are indistinguishable.
		return nil, ErrCredentialMismatch
	}
	if err := VerifyPassword(hash, password); err != nil {
		return nil, ErrCredentialMismatch
	}
	return acct, nil
}

func (s *PGStore) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) scanOne(row *sql.Row) (*Account, error) {
	acct := &Account{}
	err := row.Scan(
		&acct.ID, &acct.Login, &acct.Email, &acct.DisplayName, &acct.Role,
		&acct.Provider, &acct.Subject, &acct.AvatarURL, &acct.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
