package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-service/internal/domain"
)

// LedgerRepository derives balances and entry histories from committed rows.
// All methods are read-only and safe to run concurrently with postings:
// they see either the pre- or post-commit state of a journal, never a
// partially written one.
type LedgerRepository interface {
	Balance(ctx context.Context, accountID int64, asOf *time.Time) (int64, error)
	Detail(ctx context.Context, accountID int64) (*domain.AccountDetail, error)
	Summaries(ctx context.Context, includeArchived bool) ([]*domain.AccountSummary, error)
	Entries(ctx context.Context, accountID, afterID int64, limit int) ([]*domain.LedgerLine, error)
}

type ledgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Balance(ctx context.Context, accountID int64, asOf *time.Time) (int64, error) {
	if _, err := r.accountExists(ctx, accountID); err != nil {
		return 0, err
	}

	q := `
		SELECT COALESCE(SUM(e.amount), 0)
		FROM entry e
		JOIN journal j ON j.id = e.journal_id
		WHERE e.account_id = $1`
	args := []any{accountID}
	if asOf != nil {
		q += ` AND j.created_at <= $2`
		args = append(args, *asOf)
	}

	var balance int64
	if err := r.db.QueryRow(ctx, q, args...).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute balance for account %d: %w", accountID, err)
	}
	return balance, nil
}

func (r *ledgerRepo) Detail(ctx context.Context, accountID int64) (*domain.AccountDetail, error) {
	var d domain.AccountDetail
	err := r.db.QueryRow(ctx, `
		SELECT a.id, a.name, a.type,
		       COALESCE(SUM(GREATEST(e.amount, 0)), 0)  AS total_debits,
		       COALESCE(-SUM(LEAST(e.amount, 0)), 0)    AS total_credits,
		       COALESCE(SUM(e.amount), 0)               AS balance,
		       NOW()
		FROM account a
		LEFT JOIN entry e ON e.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id
	`, accountID).Scan(&d.AccountID, &d.AccountName, &d.AccountType,
		&d.TotalDebits, &d.TotalCredits, &d.Balance, &d.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account detail %d: %w", accountID, err)
	}
	return &d, nil
}

func (r *ledgerRepo) Summaries(ctx context.Context, includeArchived bool) ([]*domain.AccountSummary, error) {
	q := `
		SELECT a.id, a.name, a.type, a.archived, COALESCE(b.balance, 0)
		FROM account a
		LEFT JOIN (
			SELECT account_id, SUM(amount) AS balance
			FROM entry
			GROUP BY account_id
		) b ON a.id = b.account_id`
	if !includeArchived {
		q += ` WHERE NOT a.archived`
	}
	q += ` ORDER BY a.id ASC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query account summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.AccountSummary
	for rows.Next() {
		var s domain.AccountSummary
		if err := rows.Scan(&s.AccountID, &s.AccountName, &s.AccountType, &s.Archived, &s.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return summaries, nil
}

// Entries pages through an account's committed entries in journal creation
// order. afterID is the last entry id already seen, so the sequence can be
// restarted from any point.
func (r *ledgerRepo) Entries(ctx context.Context, accountID, afterID int64, limit int) ([]*domain.LedgerLine, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.journal_id, e.account_id, e.amount,
		       j.unstructured_narrative, j.batch_id, j.created_at
		FROM entry e
		JOIN journal j ON j.id = e.journal_id
		WHERE e.account_id = $1 AND e.id > $2
		ORDER BY e.id ASC
		LIMIT $3
	`, accountID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var lines []*domain.LedgerLine
	for rows.Next() {
		var l domain.LedgerLine
		if err := rows.Scan(&l.ID, &l.JournalID, &l.AccountID, &l.Amount,
			&l.Narrative, &l.BatchID, &l.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger line: %w", err)
		}
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger lines: %w", err)
	}
	return lines, nil
}

func (r *ledgerRepo) accountExists(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM account WHERE id=$1)`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account %d: %w", accountID, err)
	}
	if !exists {
		return false, domain.ErrAccountNotFound
	}
	return true, nil
}
