package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-service/internal/domain"
)

// SettingsRepository persists the settings key/value table. Its only
// structured consumer is the number allocator, which claims per-type
// nextAccount<Type> counters through AllocateCounter.
type SettingsRepository interface {
	GetInt(ctx context.Context, name string) (int64, bool, error)
	SetInt(ctx context.Context, name string, value int64) error
	GetString(ctx context.Context, name string) (string, bool, error)
	SetString(ctx context.Context, name, value string) error

	// AllocateCounter atomically claims and returns the next value of the
	// named counter within [floor, ceiling). Two concurrent calls never
	// observe the same value. Returns domain.ErrRangeExhausted when the
	// counter has reached the ceiling.
	AllocateCounter(ctx context.Context, name string, floor, ceiling int64) (int64, error)
}

type settingsRepo struct {
	db *pgxpool.Pool
}

func NewSettingsRepo(db *pgxpool.Pool) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) GetInt(ctx context.Context, name string) (int64, bool, error) {
	var v *int64
	err := r.db.QueryRow(ctx, `SELECT int_value FROM settings WHERE name=$1`, name).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read setting %s: %w", name, err)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

func (r *settingsRepo) SetInt(ctx context.Context, name string, value int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (name, int_value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET int_value = EXCLUDED.int_value
	`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", name, err)
	}
	return nil
}

func (r *settingsRepo) GetString(ctx context.Context, name string) (string, bool, error) {
	var v *string
	err := r.db.QueryRow(ctx, `SELECT str_value FROM settings WHERE name=$1`, name).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (r *settingsRepo) SetString(ctx context.Context, name, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (name, str_value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET str_value = EXCLUDED.str_value
	`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", name, err)
	}
	return nil
}

// AllocateCounter claims the next counter value in a single statement so the
// read-increment-write is serialized by the database row lock. The stored
// int_value always holds the next unclaimed id.
func (r *settingsRepo) AllocateCounter(ctx context.Context, name string, floor, ceiling int64) (int64, error) {
	var claimed int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO settings (name, int_value) VALUES ($1, $2 + 1)
		ON CONFLICT (name) DO UPDATE SET int_value = settings.int_value + 1
		WHERE settings.int_value < $3
		RETURNING int_value - 1
	`, name, floor, ceiling).Scan(&claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: counter %s reached %d", domain.ErrRangeExhausted, name, ceiling)
		}
		return 0, fmt.Errorf("failed to allocate counter %s: %w", name, err)
	}
	return claimed, nil
}
