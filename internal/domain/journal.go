package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Batch groups journals posted together, e.g. one statement import run.
// Created once, immutable thereafter.
type Batch struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`
}

// Journal is one balanced transaction. It is created atomically with its
// entries and never mutated; corrections are new reversing journals.
type Journal struct {
	ID                    int64     `json:"id"`
	BatchID               *int64    `json:"batch_id,omitempty"`
	UnstructuredNarrative string    `json:"unstructured_narrative"`
	CreatedAt             time.Time `json:"created_at"`
}

// Entry is one leg of a journal against one account. Amounts are signed
// integers in minor currency units: positive is a debit, negative a credit.
type Entry struct {
	ID        int64 `json:"id"`
	JournalID int64 `json:"journal_id"`
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

// EntryLine is one leg of a journal submission before ids are assigned.
type EntryLine struct {
	AccountID int64 `json:"account"`
	Amount    int64 `json:"amount"`
}

// JournalDraft is a journal submission, used for batch posting.
type JournalDraft struct {
	UnstructuredNarrative string      `json:"unstructured_narrative"`
	Lines                 []EntryLine `json:"entries"`
}

// CheckBalanced enforces the double-entry invariant: at least two legs, and
// amounts summing to exactly zero. Integer arithmetic only.
func CheckBalanced(lines []EntryLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: journal needs at least 2 entries, got %d", ErrUnbalancedJournal, len(lines))
	}
	var sum int64
	for _, l := range lines {
		next := sum + l.Amount
		// int64 wraparound would let a nonzero true sum read as zero.
		if (l.Amount > 0 && next < sum) || (l.Amount < 0 && next > sum) {
			return fmt.Errorf("%w: entry amounts overflow int64", ErrUnbalancedJournal)
		}
		sum = next
	}
	if sum != 0 {
		return fmt.Errorf("%w: entries sum to %d", ErrUnbalancedJournal, sum)
	}
	return nil
}

// ValidateNarrative enforces the 140-char limit on journal memos.
func ValidateNarrative(s string) error {
	if utf8.RuneCountInString(s) > MaxAccountNameLen {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidNarrative, MaxAccountNameLen)
	}
	return nil
}
