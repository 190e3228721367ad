package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetgate/internal/auth"
)

const uniqueViolation = "23505"

const (
	insertAccount = `
INSERT INTO accounts (id, name, email, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	selectAccountByEmail = `
SELECT id, name, email, password_hash, role, created_at
FROM accounts WHERE email = $1`

	selectAccountByID = `
SELECT id, name, email, password_hash, role, created_at
FROM accounts WHERE id = $1`
)

// Postgres stores accounts in the accounts table. Uniqueness of email is
// enforced by the accounts_email_key constraint.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ auth.AccountStore = (*Postgres)(nil)

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, a auth.NewAccount) (auth.Account, error) {
	acct := auth.Account{
		ID:           uuid.NewString(),
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := p.pool.Exec(ctx, insertAccount,
		acct.ID, acct.Name, acct.Email, acct.PasswordHash, string(acct.Role), acct.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.Account{}, auth.ErrDuplicateEmail
		}
		return auth.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

func (p *Postgres) ByEmail(ctx context.Context, email string) (auth.Account, error) {
	return p.queryOne(ctx, selectAccountByEmail, email)
}

func (p *Postgres) ByID(ctx context.Context, id string) (auth.Account, error) {
	return p.queryOne(ctx, selectAccountByID, id)
}

func (p *Postgres) queryOne(ctx context.Context, query string, arg string) (auth.Account, error) {
	var (
		acct auth.Account
		role string
	)
	err := p.pool.QueryRow(ctx, query, arg).Scan(
		&acct.ID, &acct.Name, &acct.Email, &acct.PasswordHash, &role, &acct.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Account{}, auth.ErrNotFound
		}
		return auth.Account{}, fmt.Errorf("query account: %w", err)
	}
	acct.Role = auth.Role(role)
	return acct, nil
}
