package domain

import "time"

// BankStatementEntry is one externally reported bank line awaiting
// reconciliation. It is an immutable record of external fact; match state is
// derived per run, never written back.
type BankStatementEntry struct {
	ID                    int64      `json:"id"`
	AccountID             int64      `json:"account"`
	Amount                int64      `json:"amt"`
	UnstructuredNarrative string     `json:"unstructured_narrative"`
	StatementDate         *time.Time `json:"statement_date,omitempty"`
}
