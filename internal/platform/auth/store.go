package auth

import (
	"context"
	"database/sql"
	"errors"
)

type Account struct {
	Username     string
	Mail         string
	PasswordHash string
	Role         string
	IsDisabled   bool
	CreatedAt    string
}

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Delete(ctx context.Context, username string) (int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	const q = `
SELECT username, mail, password_hash, role, is_disabled, created_at
FROM accounts
WHERE username = ?
LIMIT 1
`
	var a Account
	var isDisabledInt int
	err := s.db.QueryRowContext(ctx, q, username).Scan(
		&a.Username,
		&a.Mail,
		&a.PasswordHash,
		&a.Role,
		&isDisabledInt,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isDisabledInt != 0 {
		a.IsDisabled = true
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO accounts (username, mail, password_hash, role, is_disabled, created_at)
VALUES (?, ?, ?, ?, 0, NOW(6))
`
	_, err := s.db.ExecContext(ctx, q, a.Username, a.Mail, a.PasswordHash, a.Role)
	return err
}

func (s *Store) Delete(ctx context.Context, username string) (int64, error) {
	const q = `DELETE FROM accounts WHERE username = ?`
	res, err := s.db.ExecContext(ctx, q, username)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
