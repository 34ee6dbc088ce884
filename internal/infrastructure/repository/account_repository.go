// Package repository implements the PostgreSQL stores.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/account"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/service/accounts"
)

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(pool *pgxpool.Pool) accounts.Repository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	const query = `
		INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, a.ID, a.Email.String(), a.PasswordHash, a.CreatedAt)
	return wrapError(err, "account", "create")
}

func (r *accountRepository) GetByEmail(ctx context.Context, email values.Email) (*account.Account, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`

	var (
		a    account.Account
		addr string
	)
	err := r.pool.QueryRow(ctx, query, email.String()).Scan(&a.ID, &addr, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, wrapError(err, "account", "get")
	}

	a.Email, err = values.NewEmail(addr)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
