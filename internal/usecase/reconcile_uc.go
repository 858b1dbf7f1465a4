package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const reconcilePageSize = 500

// ReconcileUsecase matches bank statement lines against posted ledger
// entries. It never mutates either side: the report is derived output and
// the same inputs always produce the same matches.
type ReconcileUsecase struct {
	ledger     repository.LedgerRepository
	statements repository.StatementRepository
	accounts   repository.AccountRepository
	log        *zap.Logger
}

func NewReconcileUsecase(
	ledger repository.LedgerRepository,
	statements repository.StatementRepository,
	accounts repository.AccountRepository,
	log *zap.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		ledger:     ledger,
		statements: statements,
		accounts:   accounts,
		log:        log,
	}
}

// Reconcile matches the supplied statement lines against the account's
// committed entries. The account must exist, even when it has no entries.
func (uc *ReconcileUsecase) Reconcile(ctx context.Context, accountID int64, lines []*domain.BankStatementEntry) (*domain.ReconciliationReport, error) {
	if _, err := uc.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := uc.allEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	report := matchLines(accountID, entries, lines)
	report.Reference = ulid.Make().String()
	report.GeneratedAt = time.Now()

	uc.log.Info("reconciliation complete",
		zap.Int64("account_id", accountID),
		zap.Int("matched", len(report.Matches)),
		zap.Int("unmatched_statement", len(report.UnmatchedStatement)),
		zap.Int("ambiguous", len(report.Ambiguous)))
	return report, nil
}

// ReconcileStored is Reconcile over the account's persisted statement lines.
func (uc *ReconcileUsecase) ReconcileStored(ctx context.Context, accountID int64) (*domain.ReconciliationReport, error) {
	lines, err := uc.statements.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return uc.Reconcile(ctx, accountID, lines)
}

func (uc *ReconcileUsecase) allEntries(ctx context.Context, accountID int64) ([]*domain.LedgerLine, error) {
	var all []*domain.LedgerLine
	var afterID int64
	for {
		page, err := uc.ledger.Entries(ctx, accountID, afterID, reconcilePageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < reconcilePageSize {
			return all, nil
		}
		afterID = page[len(page)-1].ID
	}
}

// matchLines is the pure matching core. For each statement line, in order:
// candidates are unclaimed entries of equal amount, preferring the ledger's
// own sign convention over an inverted statement convention. Multiple
// candidates are narrowed by date proximity (when the line carries a date)
// and then by narrative equality; a line still holding more than one
// equally plausible candidate is reported as ambiguous, never auto-resolved.
func matchLines(accountID int64, entries []*domain.LedgerLine, lines []*domain.BankStatementEntry) *domain.ReconciliationReport {
	report := &domain.ReconciliationReport{AccountID: accountID}
	claimed := make(map[int64]bool)

	for _, line := range lines {
		pool, inverted := candidatesFor(entries, claimed, line.Amount)
		if len(pool) == 0 {
			report.UnmatchedStatement = append(report.UnmatchedStatement, line.ID)
			continue
		}

		if len(pool) > 1 && line.StatementDate != nil {
			pool = nearestByDate(pool, *line.StatementDate)
		}
		if len(pool) > 1 {
			pool = narrowByNarrative(pool, line.UnstructuredNarrative)
		}

		if len(pool) > 1 {
			ids := make([]int64, len(pool))
			for i, e := range pool {
				ids[i] = e.ID
			}
			report.Ambiguous = append(report.Ambiguous, domain.AmbiguousLine{
				StatementEntryID: line.ID,
				CandidateEntries: ids,
			})
			continue
		}

		match := pool[0]
		claimed[match.ID] = true
		report.Matches = append(report.Matches, domain.ReconciliationMatch{
			StatementEntryID: line.ID,
			EntryID:          match.ID,
			JournalID:        match.JournalID,
			Amount:           match.Amount,
			SignInverted:     inverted,
		})
	}

	for _, e := range entries {
		if !claimed[e.ID] {
			report.UnmatchedEntries = append(report.UnmatchedEntries, e.ID)
		}
	}
	return report
}

// candidatesFor collects unclaimed entries matching the line amount. Entries
// matching under the ledger's own sign convention win over an inverted
// statement convention; the two orientations are never mixed in one pool.
func candidatesFor(entries []*domain.LedgerLine, claimed map[int64]bool, amount int64) ([]*domain.LedgerLine, bool) {
	var sameSign, inverted []*domain.LedgerLine
	for _, e := range entries {
		if claimed[e.ID] {
			continue
		}
		switch {
		case e.Amount == amount:
			sameSign = append(sameSign, e)
		case amount != 0 && e.Amount == -amount:
			inverted = append(inverted, e)
		}
	}
	if len(sameSign) > 0 {
		return sameSign, false
	}
	return inverted, true
}

// nearestByDate keeps the candidates whose posting date is closest to the
// statement date. Ties all survive; the caller treats survivors > 1 as
// ambiguous.
func nearestByDate(pool []*domain.LedgerLine, date time.Time) []*domain.LedgerLine {
	best := int64(-1)
	for _, e := range pool {
		d := dayDistance(e.PostedAt, date)
		if best < 0 || d < best {
			best = d
		}
	}
	var nearest []*domain.LedgerLine
	for _, e := range pool {
		if dayDistance(e.PostedAt, date) == best {
			nearest = append(nearest, e)
		}
	}
	return nearest
}

func dayDistance(a, b time.Time) int64 {
	da := a.UTC().Truncate(24 * time.Hour)
	db := b.UTC().Truncate(24 * time.Hour)
	d := int64(da.Sub(db).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// narrowByNarrative keeps candidates whose journal narrative equals the
// statement narrative, ignoring case and surrounding space. If none match
// the pool is returned unchanged.
func narrowByNarrative(pool []*domain.LedgerLine, narrative string) []*domain.LedgerLine {
	want := strings.TrimSpace(strings.ToLower(narrative))
	if want == "" {
		return pool
	}
	var matched []*domain.LedgerLine
	for _, e := range pool {
		if strings.TrimSpace(strings.ToLower(e.Narrative)) == want {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return pool
	}
	return matched
}
