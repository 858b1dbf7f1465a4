package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-service/internal/domain"
)

// Bank statement CSV layout: date,amount,narrative. Amounts are decimal
// major units ("12.34") and are converted exactly to minor units; anything
// finer than two decimal places is rejected rather than rounded.
const (
	statementDateFormat = "2006-01-02"
	statementNumFields  = 3
	colDate             = 0
	colAmount           = 1
	colNarrative        = 2
)

// ParseCSV reads bank statement lines for one account. A header row is
// skipped when its amount column does not parse as a number.
func ParseCSV(r io.Reader, accountID int64) ([]*domain.BankStatementEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = statementNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if _, err := decimal.NewFromString(strings.TrimSpace(records[0][colAmount])); err != nil {
		start = 1
	}

	var lines []*domain.BankStatementEntry
	for i, rec := range records[start:] {
		line, err := parseRow(rec, accountID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+start+1, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseRow(rec []string, accountID int64) (*domain.BankStatementEntry, error) {
	date, err := time.Parse(statementDateFormat, strings.TrimSpace(rec[colDate]))
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}

	amount, err := MinorUnits(strings.TrimSpace(rec[colAmount]))
	if err != nil {
		return nil, err
	}

	narrative := strings.TrimSpace(rec[colNarrative])
	if err := domain.ValidateNarrative(narrative); err != nil {
		return nil, err
	}

	return &domain.BankStatementEntry{
		AccountID:             accountID,
		Amount:                amount,
		UnstructuredNarrative: narrative,
		StatementDate:         &date,
	}, nil
}

// MinorUnits converts a decimal amount string to integer minor units.
// "12.34" becomes 1234. Amounts with more than two decimal places fail.
func MinorUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than 2 decimal places", s)
	}
	return shifted.IntPart(), nil
}
