package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/layer-3/zeroturbo/core"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// AccountRepository stores accounts in the account table
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByID retrieves a live account by exact ID match
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*core.Account, error) {
	query := `SELECT id, email, time_created, time_deleted FROM account WHERE id = $1 AND time_deleted IS NULL`
	return r.scanOne(ctx, query, id)
}

// FindByEmail retrieves a live account by email
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	query := `SELECT id, email, time_created, time_deleted FROM account WHERE email = $1 AND time_deleted IS NULL LIMIT 1`
	return r.scanOne(ctx, query, email)
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *core.Account) (*core.Account, error) {
	query := `
		INSERT INTO account (id, email)
		VALUES ($1, $2)
		RETURNING id, email, time_created`

	created := &core.Account{}
	err := r.db.QueryRowContext(ctx, query, account.ID, account.Email).
		Scan(&created.ID, &created.Email, &created.TimeCreated)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("account %s: %w", account.Email, core.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

func (r *AccountRepository) scanOne(ctx context.Context, query string, arg string) (*core.Account, error) {
	account := &core.Account{}
	var deleted sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&account.ID, &account.Email, &account.TimeCreated, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if deleted.Valid {
		account.TimeDeleted = &deleted.Time
	}

	return account, nil
}
