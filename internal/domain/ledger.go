package domain

import "time"

// AccountSummary is one account with its derived balance.
// Positive balances are debit balances, negative are credit balances.
type AccountSummary struct {
	AccountID   int64       `json:"account_id"`
	AccountName string      `json:"account_name"`
	AccountType AccountType `json:"account_type"`
	Archived    bool        `json:"archived"`
	Balance     int64       `json:"balance"`
}

// AccountDetail is the full derived position of one account.
type AccountDetail struct {
	AccountID    int64       `json:"account_id"`
	AccountName  string      `json:"account_name"`
	AccountType  AccountType `json:"account_type"`
	TotalDebits  int64       `json:"total_debits"`
	TotalCredits int64       `json:"total_credits"`
	Balance      int64       `json:"balance"`
	Timestamp    time.Time   `json:"timestamp"`
}

// LedgerLine is one committed entry with its owning journal's context,
// as produced by the ledger view for statements and reconciliation.
type LedgerLine struct {
	Entry
	Narrative string    `json:"narrative"`
	BatchID   *int64    `json:"batch_id,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}
