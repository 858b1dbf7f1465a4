package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-service/internal/domain"
)

// AccountRepository persists the chart of accounts. Accounts are never
// deleted; archive and confidential flags are the only mutations.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	List(ctx context.Context, includeArchived bool) ([]*domain.Account, error)
	SetArchived(ctx context.Context, id int64, archived bool) error
	SetConfidential(ctx context.Context, id int64, confidential bool) error
}

type accountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepo(db *pgxpool.Pool) AccountRepository {
	return &accountRepo{db: db}
}

const accountSelect = `
	SELECT id, name, type, archived, confidential, created_at
	FROM account`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Archived, &a.Confidential, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

func (r *accountRepo) Create(ctx context.Context, a *domain.Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO account (id, name, type, archived, confidential)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, a.ID, a.Name, a.Type, a.Archived, a.Confidential).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: id %d", domain.ErrAccountExists, a.ID)
		}
		return fmt.Errorf("failed to insert account %d: %w", a.ID, err)
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, accountSelect+` WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *accountRepo) List(ctx context.Context, includeArchived bool) ([]*domain.Account, error) {
	q := accountSelect
	if !includeArchived {
		q += ` WHERE NOT archived`
	}
	q += ` ORDER BY id ASC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Archived, &a.Confidential, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	return r.setFlag(ctx, id, "archived", archived)
}

func (r *accountRepo) SetConfidential(ctx context.Context, id int64, confidential bool) error {
	return r.setFlag(ctx, id, "confidential", confidential)
}

func (r *accountRepo) setFlag(ctx context.Context, id int64, column string, value bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE account SET `+column+`=$1 WHERE id=$2`, value, id)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
