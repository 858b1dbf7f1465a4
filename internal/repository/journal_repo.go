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

// JournalRepository persists journals and their entries. A journal and its
// entries are committed as one transaction: the ledger view can never observe
// a journal with only some of its entries written.
type JournalRepository interface {
	// CreateWithEntries inserts one journal and all of its entries
	// atomically, filling in the assigned ids.
	CreateWithEntries(ctx context.Context, j *domain.Journal, entries []*domain.Entry) error

	// CreateBatch inserts one batch row plus every journal and entry under
	// it in a single transaction. entries[i] belongs to journals[i].
	CreateBatch(ctx context.Context, b *domain.Batch, journals []*domain.Journal, entries [][]*domain.Entry) error

	GetByID(ctx context.Context, id int64) (*domain.Journal, []*domain.Entry, error)
	GetBatchByID(ctx context.Context, id int64) (*domain.Batch, error)
}

type journalRepo struct {
	db *pgxpool.Pool
}

func NewJournalRepo(db *pgxpool.Pool) JournalRepository {
	return &journalRepo{db: db}
}

func (r *journalRepo) CreateWithEntries(ctx context.Context, j *domain.Journal, entries []*domain.Entry) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTxFailure, err)
	}
	defer tx.Rollback(ctx)

	if err := insertJournal(ctx, tx, j, entries); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTxFailure, err)
	}
	return nil
}

func (r *journalRepo) CreateBatch(ctx context.Context, b *domain.Batch, journals []*domain.Journal, entries [][]*domain.Entry) error {
	if len(journals) != len(entries) {
		return errors.New("journals and entries length mismatch")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTxFailure, err)
	}
	defer tx.Rollback(ctx)

	if b.Date.IsZero() {
		b.Date = time.Now()
	}
	err = tx.QueryRow(ctx, `INSERT INTO batch (date) VALUES ($1) RETURNING id`, b.Date).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("%w: insert batch: %v", domain.ErrTxFailure, err)
	}

	for i, j := range journals {
		j.BatchID = &b.ID
		if err := insertJournal(ctx, tx, j, entries[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTxFailure, err)
	}
	return nil
}

func insertJournal(ctx context.Context, tx pgx.Tx, j *domain.Journal, entries []*domain.Entry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO journal (batch_id, unstructured_narrative)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, j.BatchID, j.UnstructuredNarrative).Scan(&j.ID, &j.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert journal: %v", domain.ErrTxFailure, err)
	}

	for _, e := range entries {
		e.JournalID = j.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO entry (journal_id, account_id, amount)
			VALUES ($1, $2, $3)
			RETURNING id
		`, e.JournalID, e.AccountID, e.Amount).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("%w: insert entry: %v", domain.ErrTxFailure, err)
		}
	}
	return nil
}

func (r *journalRepo) GetBatchByID(ctx context.Context, id int64) (*domain.Batch, error) {
	var b domain.Batch
	err := r.db.QueryRow(ctx, `SELECT id, date FROM batch WHERE id=$1`, id).Scan(&b.ID, &b.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch %d: %w", id, err)
	}
	return &b, nil
}

func (r *journalRepo) GetByID(ctx context.Context, id int64) (*domain.Journal, []*domain.Entry, error) {
	var j domain.Journal
	err := r.db.QueryRow(ctx, `
		SELECT id, batch_id, unstructured_narrative, created_at
		FROM journal WHERE id=$1
	`, id).Scan(&j.ID, &j.BatchID, &j.UnstructuredNarrative, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrJournalNotFound
		}
		return nil, nil, fmt.Errorf("failed to get journal %d: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, journal_id, account_id, amount
		FROM entry WHERE journal_id=$1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query entries for journal %d: %w", id, err)
	}
	defer rows.Close()

	var entries []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.JournalID, &e.AccountID, &e.Amount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return &j, entries, nil
}
