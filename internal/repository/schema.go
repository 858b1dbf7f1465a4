package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the ledger tables if they do not exist yet.
// Idempotent; run once at startup before serving.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id           BIGINT PRIMARY KEY,
			name         VARCHAR(140) NOT NULL,
			type         TEXT NOT NULL,
			archived     BOOLEAN NOT NULL DEFAULT FALSE,
			confidential BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS batch (
			id   BIGSERIAL PRIMARY KEY,
			date DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS journal (
			id                     BIGSERIAL PRIMARY KEY,
			batch_id               BIGINT REFERENCES batch(id),
			unstructured_narrative VARCHAR(140) NOT NULL DEFAULT '',
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS entry (
			id         BIGSERIAL PRIMARY KEY,
			journal_id BIGINT NOT NULL REFERENCES journal(id),
			account_id BIGINT NOT NULL REFERENCES account(id),
			amount     BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bank_statement_entry (
			id                     BIGSERIAL PRIMARY KEY,
			account                BIGINT NOT NULL REFERENCES account(id),
			amt                    BIGINT NOT NULL,
			unstructured_narrative VARCHAR(140) NOT NULL DEFAULT '',
			statement_date         DATE
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			name      TEXT PRIMARY KEY,
			int_value BIGINT,
			str_value TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_account ON entry(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_journal ON entry(journal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_statement_account ON bank_statement_entry(account)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
