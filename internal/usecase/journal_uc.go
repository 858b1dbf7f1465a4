package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
)

// JournalUsecase validates and atomically commits balanced journals. It is
// the only writer of journal and entry rows; everything the ledger view
// reads went through here.
type JournalUsecase struct {
	journals  repository.JournalRepository
	accounts  repository.AccountRepository
	rdb       *redis.Client
	publisher *pub.JournalEventPublisher
	log       *zap.Logger
}

func NewJournalUsecase(
	journals repository.JournalRepository,
	accounts repository.AccountRepository,
	rdb *redis.Client,
	publisher *pub.JournalEventPublisher,
	log *zap.Logger,
) *JournalUsecase {
	return &JournalUsecase{
		journals:  journals,
		accounts:  accounts,
		rdb:       rdb,
		publisher: publisher,
		log:       log,
	}
}

// Post validates one journal submission and commits the journal row plus all
// entry rows as a single indivisible unit. Rejections leave no state behind.
func (uc *JournalUsecase) Post(ctx context.Context, narrative string, lines []domain.EntryLine, batchID *int64) (*domain.Journal, []*domain.Entry, error) {
	if err := uc.validate(ctx, narrative, lines); err != nil {
		return nil, nil, err
	}
	if batchID != nil {
		if _, err := uc.journals.GetBatchByID(ctx, *batchID); err != nil {
			return nil, nil, err
		}
	}

	j := &domain.Journal{BatchID: batchID, UnstructuredNarrative: narrative}
	entries := makeEntries(lines)
	if err := uc.journals.CreateWithEntries(ctx, j, entries); err != nil {
		return nil, nil, err
	}

	uc.afterCommit(ctx, "journal.posted", j, entries)
	return j, entries, nil
}

// PostBatch commits one batch with every journal and its entries in a single
// transaction. All journals are validated before any row is written, so one
// bad journal rejects the whole batch.
func (uc *JournalUsecase) PostBatch(ctx context.Context, date time.Time, drafts []domain.JournalDraft) (*domain.Batch, []*domain.Journal, error) {
	if len(drafts) == 0 {
		return nil, nil, fmt.Errorf("batch has no journals")
	}
	for _, d := range drafts {
		if err := uc.validate(ctx, d.UnstructuredNarrative, d.Lines); err != nil {
			return nil, nil, err
		}
	}

	b := &domain.Batch{Date: date}
	journals := make([]*domain.Journal, len(drafts))
	entries := make([][]*domain.Entry, len(drafts))
	for i, d := range drafts {
		journals[i] = &domain.Journal{UnstructuredNarrative: d.UnstructuredNarrative}
		entries[i] = makeEntries(d.Lines)
	}

	if err := uc.journals.CreateBatch(ctx, b, journals, entries); err != nil {
		return nil, nil, err
	}

	for i, j := range journals {
		uc.afterCommit(ctx, "journal.posted", j, entries[i])
	}
	uc.log.Info("batch posted",
		zap.Int64("batch_id", b.ID),
		zap.Int("journals", len(journals)))
	return b, journals, nil
}

// Reverse posts a new journal with the inverted entries of an existing one.
// The original journal is untouched; the pair preserves the audit trail.
func (uc *JournalUsecase) Reverse(ctx context.Context, journalID int64, narrative string) (*domain.Journal, []*domain.Entry, error) {
	orig, origEntries, err := uc.journals.GetByID(ctx, journalID)
	if err != nil {
		return nil, nil, err
	}

	if narrative == "" {
		narrative = fmt.Sprintf("Reversal of journal %d", orig.ID)
	}
	lines := make([]domain.EntryLine, len(origEntries))
	for i, e := range origEntries {
		lines[i] = domain.EntryLine{AccountID: e.AccountID, Amount: -e.Amount}
	}

	j, entries, err := uc.Post(ctx, narrative, lines, nil)
	if err != nil {
		return nil, nil, err
	}
	uc.log.Info("journal reversed",
		zap.Int64("original_id", orig.ID),
		zap.Int64("reversal_id", j.ID))
	return j, entries, nil
}

func (uc *JournalUsecase) validate(ctx context.Context, narrative string, lines []domain.EntryLine) error {
	if err := domain.ValidateNarrative(narrative); err != nil {
		return err
	}
	if err := domain.CheckBalanced(lines); err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true
		if _, err := uc.accounts.GetByID(ctx, l.AccountID); err != nil {
			return fmt.Errorf("entry references account %d: %w", l.AccountID, err)
		}
	}
	return nil
}

func (uc *JournalUsecase) afterCommit(ctx context.Context, eventType string, j *domain.Journal, entries []*domain.Entry) {
	uc.publisher.PublishJournalPosted(ctx, eventType, j, entries)
	uc.invalidateBalances(ctx, entries)
	uc.log.Info("journal posted",
		zap.Int64("journal_id", j.ID),
		zap.Int("entries", len(entries)))
}

func (uc *JournalUsecase) invalidateBalances(ctx context.Context, entries []*domain.Entry) {
	if uc.rdb == nil {
		return
	}
	for _, e := range entries {
		_ = uc.rdb.Del(ctx, balanceCacheKey(e.AccountID)).Err()
	}
}

func makeEntries(lines []domain.EntryLine) []*domain.Entry {
	entries := make([]*domain.Entry, len(lines))
	for i, l := range lines {
		entries[i] = &domain.Entry{AccountID: l.AccountID, Amount: l.Amount}
	}
	return entries
}
