package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-service/internal/domain"
)

// StatementRepository persists externally sourced bank statement lines.
// Rows are immutable records of external fact; reconciliation never writes
// match state back to them.
type StatementRepository interface {
	CreateMany(ctx context.Context, lines []*domain.BankStatementEntry) error
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.BankStatementEntry, error)
}

type statementRepo struct {
	db *pgxpool.Pool
}

func NewStatementRepo(db *pgxpool.Pool) StatementRepository {
	return &statementRepo{db: db}
}

func (r *statementRepo) CreateMany(ctx context.Context, lines []*domain.BankStatementEntry) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTxFailure, err)
	}
	defer tx.Rollback(ctx)

	for _, l := range lines {
		err := tx.QueryRow(ctx, `
			INSERT INTO bank_statement_entry (account, amt, unstructured_narrative, statement_date)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, l.AccountID, l.Amount, l.UnstructuredNarrative, l.StatementDate).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("%w: insert statement line: %v", domain.ErrTxFailure, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTxFailure, err)
	}
	return nil
}

func (r *statementRepo) ListByAccount(ctx context.Context, accountID int64) ([]*domain.BankStatementEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account, amt, unstructured_narrative, statement_date
		FROM bank_statement_entry
		WHERE account = $1
		ORDER BY id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement lines for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var lines []*domain.BankStatementEntry
	for rows.Next() {
		var l domain.BankStatementEntry
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Amount, &l.UnstructuredNarrative, &l.StatementDate); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statement lines: %w", err)
	}
	return lines, nil
}
