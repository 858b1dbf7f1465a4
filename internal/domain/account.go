package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// AccountType classifies an account in the chart of accounts. The type also
// fixes the numeric range account ids are drawn from.
type AccountType string

const (
	AccountTypeCash                AccountType = "Cash"
	AccountTypeCurrentAsset        AccountType = "CurrentAsset"
	AccountTypeNonCurrentAsset     AccountType = "NonCurrentAsset"
	AccountTypeCurrentLiability    AccountType = "CurrentLiability"
	AccountTypeNonCurrentLiability AccountType = "NonCurrentLiability"
	AccountTypeEquity              AccountType = "Equity"
	AccountTypeRevenue             AccountType = "Revenue"
	AccountTypeOtherIncome         AccountType = "OtherIncome"
	AccountTypeExpense             AccountType = "Expense"
)

// MaxAccountNameLen bounds account names and journal narratives alike.
const MaxAccountNameLen = 140

// NumberRange is the closed-open interval [Lo, Hi) of ids reserved for one
// account type. Each type's ceiling is the next type's floor.
type NumberRange struct {
	Lo int64
	Hi int64
}

// Contains reports whether id falls inside the range.
func (r NumberRange) Contains(id int64) bool {
	return id >= r.Lo && id < r.Hi
}

var accountRanges = map[AccountType]NumberRange{
	AccountTypeCash:                {Lo: 100, Hi: 120},
	AccountTypeCurrentAsset:        {Lo: 120, Hi: 180},
	AccountTypeNonCurrentAsset:     {Lo: 180, Hi: 200},
	AccountTypeCurrentLiability:    {Lo: 200, Hi: 280},
	AccountTypeNonCurrentLiability: {Lo: 280, Hi: 300},
	AccountTypeEquity:              {Lo: 300, Hi: 400},
	AccountTypeRevenue:             {Lo: 400, Hi: 480},
	AccountTypeOtherIncome:         {Lo: 480, Hi: 500},
	AccountTypeExpense:             {Lo: 500, Hi: 600},
}

// AllAccountTypes lists the known types in range order.
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeCash,
		AccountTypeCurrentAsset,
		AccountTypeNonCurrentAsset,
		AccountTypeCurrentLiability,
		AccountTypeNonCurrentLiability,
		AccountTypeEquity,
		AccountTypeRevenue,
		AccountTypeOtherIncome,
		AccountTypeExpense,
	}
}

// Valid reports whether t is one of the known classifications.
func (t AccountType) Valid() bool {
	_, ok := accountRanges[t]
	return ok
}

// Range returns the id interval reserved for t.
func (t AccountType) Range() (NumberRange, bool) {
	r, ok := accountRanges[t]
	return r, ok
}

// CounterSetting is the settings-table key holding the next free id for t,
// e.g. "nextAccountCurrentLiability".
func (t AccountType) CounterSetting() string {
	return fmt.Sprintf("nextAccount%s", string(t))
}

// ParseAccountType maps a wire string onto a known classification.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
	}
	return t, nil
}

// ValidateAccountName enforces the non-empty, 140-char limit on names.
func ValidateAccountName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidAccountName)
	}
	if utf8.RuneCountInString(name) > MaxAccountNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLen)
	}
	return nil
}

// Account is one row in the chart of accounts. Accounts are never deleted;
// archived and confidential are display flags, not write locks.
type Account struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Type         AccountType `json:"type"`
	Archived     bool        `json:"archived"`
	Confidential bool        `json:"confidential"`
	CreatedAt    time.Time   `json:"created_at"`
}
