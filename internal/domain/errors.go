package domain

import "errors"

// Sentinel errors surfaced to callers. Handlers map these onto HTTP status
// codes; repositories wrap storage failures with ErrTxFailure.
var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidAccountName = errors.New("invalid account name")
	ErrInvalidAccountID   = errors.New("account id outside type range")
	ErrAccountExists      = errors.New("account id already in use")
	ErrAccountNotFound    = errors.New("account not found")
	ErrJournalNotFound    = errors.New("journal not found")
	ErrBatchNotFound      = errors.New("batch not found")
	ErrInvalidNarrative   = errors.New("invalid narrative")
	ErrRangeExhausted     = errors.New("account number range exhausted")
	ErrUnbalancedJournal  = errors.New("journal entries do not balance")
	ErrTxFailure          = errors.New("storage transaction failure")
)
