package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const (
	baseCashAccountID   = 100
	baseCashAccountName = "Cash at Bank"
	defaultEntityName   = "General Ledger"
)

// SystemSeeder prepares an empty database for use: one allocator counter per
// account type at its range floor, the entity name setting, and the base
// Cash account. Every step is idempotent, so seeding reruns on each start.
type SystemSeeder struct {
	settings repository.SettingsRepository
	accounts repository.AccountRepository
	log      *zap.Logger
}

func NewSystemSeeder(
	settings repository.SettingsRepository,
	accounts repository.AccountRepository,
	log *zap.Logger,
) *SystemSeeder {
	return &SystemSeeder{
		settings: settings,
		accounts: accounts,
		log:      log,
	}
}

func (s *SystemSeeder) SeedSystem(ctx context.Context) error {
	if err := s.seedCounters(ctx); err != nil {
		return err
	}
	if err := s.seedEntityName(ctx); err != nil {
		return err
	}
	if err := s.seedCashAccount(ctx); err != nil {
		return err
	}
	s.log.Info("system seeding completed")
	return nil
}

func (s *SystemSeeder) seedCounters(ctx context.Context) error {
	for _, t := range domain.AllAccountTypes() {
		name := t.CounterSetting()
		_, ok, err := s.settings.GetInt(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read counter %s: %w", name, err)
		}
		if ok {
			continue
		}
		r, _ := t.Range()
		if err := s.settings.SetInt(ctx, name, r.Lo); err != nil {
			return fmt.Errorf("failed to seed counter %s: %w", name, err)
		}
		s.log.Info("seeded allocator counter",
			zap.String("counter", name), zap.Int64("floor", r.Lo))
	}
	return nil
}

func (s *SystemSeeder) seedEntityName(ctx context.Context) error {
	_, ok, err := s.settings.GetString(ctx, "entityName")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.settings.SetString(ctx, "entityName", defaultEntityName)
}

func (s *SystemSeeder) seedCashAccount(ctx context.Context) error {
	_, err := s.accounts.GetByID(ctx, baseCashAccountID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}

	a := &domain.Account{
		ID:   baseCashAccountID,
		Name: baseCashAccountName,
		Type: domain.AccountTypeCash,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return fmt.Errorf("failed to seed cash account: %w", err)
	}

	// Advance the Cash counter past the seeded id so the next allocation
	// does not collide with it.
	counter := domain.AccountTypeCash.CounterSetting()
	cur, ok, err := s.settings.GetInt(ctx, counter)
	if err != nil {
		return err
	}
	if !ok || cur <= baseCashAccountID {
		if err := s.settings.SetInt(ctx, counter, baseCashAccountID+1); err != nil {
			return err
		}
	}

	s.log.Info("seeded base cash account", zap.Int64("account_id", baseCashAccountID))
	return nil
}
