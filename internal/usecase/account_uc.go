package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const accountCacheTTL = 5 * time.Minute

// AccountUsecase owns account identity: creation with allocator-assigned
// ids, lookup, listing, and the archive/confidential flags.
type AccountUsecase struct {
	accounts repository.AccountRepository
	alloc    *NumberAllocator
	rdb      *redis.Client
	log      *zap.Logger
}

func NewAccountUsecase(
	accounts repository.AccountRepository,
	alloc *NumberAllocator,
	rdb *redis.Client,
	log *zap.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		accounts: accounts,
		alloc:    alloc,
		rdb:      rdb,
		log:      log,
	}
}

// Create validates and persists a new account. When explicitID is nil the id
// comes from the number allocator; the allocator slot is consumed before the
// insert, so a failed insert never frees the id for reuse. An explicit id
// must fall inside the type's reserved range.
func (uc *AccountUsecase) Create(ctx context.Context, accountType, name string, explicitID *int64) (*domain.Account, error) {
	t, err := domain.ParseAccountType(accountType)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountName(name); err != nil {
		return nil, err
	}

	var id int64
	if explicitID != nil {
		r, _ := t.Range()
		if !r.Contains(*explicitID) {
			return nil, fmt.Errorf("%w: %d not in [%d, %d) for type %s",
				domain.ErrInvalidAccountID, *explicitID, r.Lo, r.Hi, t)
		}
		id = *explicitID
	} else {
		id, err = uc.alloc.Allocate(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	a := &domain.Account{ID: id, Name: name, Type: t}
	if err := uc.accounts.Create(ctx, a); err != nil {
		return nil, err
	}

	uc.log.Info("account created",
		zap.Int64("account_id", a.ID),
		zap.String("type", string(a.Type)))
	return a, nil
}

// Get fetches an account by id, serving from cache when possible.
func (uc *AccountUsecase) Get(ctx context.Context, id int64) (*domain.Account, error) {
	cacheKey := fmt.Sprintf("account:id:%d", id)
	if uc.rdb != nil {
		if val, err := uc.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var a domain.Account
			if jsonErr := json.Unmarshal([]byte(val), &a); jsonErr == nil {
				return &a, nil
			}
		}
	}

	a, err := uc.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.rdb != nil {
		if data, err := json.Marshal(a); err == nil {
			_ = uc.rdb.Set(ctx, cacheKey, data, accountCacheTTL).Err()
		}
	}
	return a, nil
}

// List returns accounts ordered by id; archived accounts are filtered out
// unless requested.
func (uc *AccountUsecase) List(ctx context.Context, includeArchived bool) ([]*domain.Account, error) {
	return uc.accounts.List(ctx, includeArchived)
}

// Archive marks the account archived. Idempotent. Archived accounts still
// accept postings: the flag is for display and reporting, not a write lock.
func (uc *AccountUsecase) Archive(ctx context.Context, id int64) error {
	return uc.setArchived(ctx, id, true)
}

// Unarchive clears the archived flag. Idempotent.
func (uc *AccountUsecase) Unarchive(ctx context.Context, id int64) error {
	return uc.setArchived(ctx, id, false)
}

func (uc *AccountUsecase) setArchived(ctx context.Context, id int64, archived bool) error {
	if err := uc.accounts.SetArchived(ctx, id, archived); err != nil {
		return err
	}
	uc.invalidate(ctx, id)
	return nil
}

// SetConfidential toggles the confidential reporting flag.
func (uc *AccountUsecase) SetConfidential(ctx context.Context, id int64, confidential bool) error {
	if err := uc.accounts.SetConfidential(ctx, id, confidential); err != nil {
		return err
	}
	uc.invalidate(ctx, id)
	return nil
}

func (uc *AccountUsecase) invalidate(ctx context.Context, id int64) {
	if uc.rdb == nil {
		return
	}
	_ = uc.rdb.Del(ctx, fmt.Sprintf("account:id:%d", id)).Err()
}
