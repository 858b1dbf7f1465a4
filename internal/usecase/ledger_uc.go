package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const balanceCacheTTL = 30 * time.Second

func balanceCacheKey(accountID int64) string {
	return fmt.Sprintf("ledger:balance:%d", accountID)
}

// LedgerUsecase derives balances and entry histories by replaying committed
// entries. Read-only relative to the journal poster's writes.
type LedgerUsecase struct {
	ledger   repository.LedgerRepository
	settings repository.SettingsRepository
	rdb      *redis.Client
	log      *zap.Logger
}

func NewLedgerUsecase(
	ledger repository.LedgerRepository,
	settings repository.SettingsRepository,
	rdb *redis.Client,
	log *zap.Logger,
) *LedgerUsecase {
	return &LedgerUsecase{
		ledger:   ledger,
		settings: settings,
		rdb:      rdb,
		log:      log,
	}
}

// Balance returns the sum of all committed entry amounts for the account.
// When asOf is set, only journals created at or before that instant count;
// those reads bypass the cache.
func (uc *LedgerUsecase) Balance(ctx context.Context, accountID int64, asOf *time.Time) (int64, error) {
	if asOf != nil {
		return uc.ledger.Balance(ctx, accountID, asOf)
	}

	cacheKey := balanceCacheKey(accountID)
	if uc.rdb != nil {
		if val, err := uc.rdb.Get(ctx, cacheKey).Result(); err == nil {
			if b, convErr := strconv.ParseInt(val, 10, 64); convErr == nil {
				return b, nil
			}
		}
	}

	b, err := uc.ledger.Balance(ctx, accountID, nil)
	if err != nil {
		return 0, err
	}
	if uc.rdb != nil {
		_ = uc.rdb.Set(ctx, cacheKey, strconv.FormatInt(b, 10), balanceCacheTTL).Err()
	}
	return b, nil
}

// Detail returns the account's derived position: debit and credit totals
// plus the net balance.
func (uc *LedgerUsecase) Detail(ctx context.Context, accountID int64) (*domain.AccountDetail, error) {
	return uc.ledger.Detail(ctx, accountID)
}

// Summaries returns every account with its balance, ordered by id.
func (uc *LedgerUsecase) Summaries(ctx context.Context, includeArchived bool) ([]*domain.AccountSummary, error) {
	return uc.ledger.Summaries(ctx, includeArchived)
}

// Entries pages through an account's ledger lines in journal creation order,
// restartable from afterID.
func (uc *LedgerUsecase) Entries(ctx context.Context, accountID, afterID int64, limit int) ([]*domain.LedgerLine, error) {
	return uc.ledger.Entries(ctx, accountID, afterID, limit)
}

// BalanceSheetSection is one account-type grouping on the balance sheet.
type BalanceSheetSection struct {
	Type     domain.AccountType       `json:"type"`
	Accounts []*domain.AccountSummary `json:"accounts"`
	Total    int64                    `json:"total"`
}

// BalanceSheet is the grouped position of the whole ledger. NetAssets is the
// sum of asset and liability balances; liabilities carry credit (negative)
// balances, so plain addition nets them off.
type BalanceSheet struct {
	EntityName  string                `json:"entity_name"`
	Sections    []BalanceSheetSection `json:"sections"`
	NetAssets   int64                 `json:"net_assets"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// BuildBalanceSheet groups every account's balance by type.
func (uc *LedgerUsecase) BuildBalanceSheet(ctx context.Context) (*BalanceSheet, error) {
	entityName, _, err := uc.settings.GetString(ctx, "entityName")
	if err != nil {
		return nil, err
	}
	summaries, err := uc.ledger.Summaries(ctx, true)
	if err != nil {
		return nil, err
	}

	byType := make(map[domain.AccountType][]*domain.AccountSummary)
	for _, s := range summaries {
		byType[s.AccountType] = append(byType[s.AccountType], s)
	}

	sheet := &BalanceSheet{EntityName: entityName, GeneratedAt: time.Now()}
	balanceSheetTypes := []domain.AccountType{
		domain.AccountTypeCash,
		domain.AccountTypeCurrentAsset,
		domain.AccountTypeNonCurrentAsset,
		domain.AccountTypeCurrentLiability,
		domain.AccountTypeNonCurrentLiability,
		domain.AccountTypeEquity,
	}
	for _, t := range balanceSheetTypes {
		section := BalanceSheetSection{Type: t, Accounts: byType[t]}
		for _, s := range section.Accounts {
			section.Total += s.Balance
		}
		sheet.Sections = append(sheet.Sections, section)
		switch t {
		case domain.AccountTypeCash, domain.AccountTypeCurrentAsset, domain.AccountTypeNonCurrentAsset,
			domain.AccountTypeCurrentLiability, domain.AccountTypeNonCurrentLiability:
			sheet.NetAssets += section.Total
		}
	}
	return sheet, nil
}
