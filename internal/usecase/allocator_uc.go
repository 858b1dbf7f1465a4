package usecase

import (
	"context"
	"fmt"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

// NumberAllocator hands out the next unused account id within a type's
// numeric range. Counters live in the settings table as nextAccount<Type>
// rows; the claim itself is serialized by the settings repository, so two
// concurrent allocations never return the same id. A claimed id is consumed
// even if the caller's account insert later fails: ids are never reused.
type NumberAllocator struct {
	settings repository.SettingsRepository
}

func NewNumberAllocator(settings repository.SettingsRepository) *NumberAllocator {
	return &NumberAllocator{settings: settings}
}

// Allocate claims the next free id for the given account type.
func (a *NumberAllocator) Allocate(ctx context.Context, t domain.AccountType) (int64, error) {
	r, ok := t.Range()
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAccountType, t)
	}
	id, err := a.settings.AllocateCounter(ctx, t.CounterSetting(), r.Lo, r.Hi)
	if err != nil {
		return 0, err
	}
	return id, nil
}
