package domain

import "time"

// ReconciliationMatch pairs one statement line with one ledger entry.
type ReconciliationMatch struct {
	StatementEntryID int64 `json:"statement_entry_id"`
	EntryID          int64 `json:"entry_id"`
	JournalID        int64 `json:"journal_id"`
	Amount           int64 `json:"amount"`
	// SignInverted is set when the statement reported the amount under the
	// opposite sign convention to the ledger's.
	SignInverted bool `json:"sign_inverted"`
}

// AmbiguousLine is a statement line with more than one equally plausible
// candidate entry. It is reported rather than auto-resolved.
type AmbiguousLine struct {
	StatementEntryID int64   `json:"statement_entry_id"`
	CandidateEntries []int64 `json:"candidate_entries"`
}

// ReconciliationReport is the derived outcome of one reconciliation run.
// Re-running on the same inputs yields the same matches.
type ReconciliationReport struct {
	Reference          string                `json:"reference"`
	AccountID          int64                 `json:"account_id"`
	GeneratedAt        time.Time             `json:"generated_at"`
	Matches            []ReconciliationMatch `json:"matches"`
	UnmatchedStatement []int64               `json:"unmatched_statement"`
	UnmatchedEntries   []int64               `json:"unmatched_entries"`
	Ambiguous          []AmbiguousLine       `json:"ambiguous"`
}
