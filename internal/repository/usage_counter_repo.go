package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"careerguide/internal/model"
)

// UsageCounterRepository stores local usage counters in Postgres.
type UsageCounterRepository interface {
	// EnsureSchema creates the counters table if it does not exist.
	EnsureSchema(ctx context.Context) error
	Increment(ctx context.Context, key model.CounterKey) (int, error)
	Get(ctx context.Context, key model.CounterKey) (int, error)
	// Sweep deletes counters for months strictly before the given one.
	Sweep(ctx context.Context, before model.YearMonth) (int64, error)
}

type usageCounterRepo struct {
	db *sql.DB
}

// NewUsageCounterRepo creates a new UsageCounterRepository.
func NewUsageCounterRepo(db *sql.DB) UsageCounterRepository {
	return &usageCounterRepo{db: db}
}

func (r *usageCounterRepo) EnsureSchema(ctx context.Context) error {
	const q = `
        CREATE TABLE IF NOT EXISTS local_usage_counters (
            user_id    TEXT        NOT NULL,
            feature    TEXT        NOT NULL,
            year_month CHAR(7)     NOT NULL,
            count      INTEGER     NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, feature, year_month)
        )
    `
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating local_usage_counters table: %w", err)
	}
	return nil
}

func (r *usageCounterRepo) Increment(ctx context.Context, key model.CounterKey) (int, error) {
	const q = `
        INSERT INTO local_usage_counters (user_id, feature, year_month, count, updated_at)
        VALUES ($1, $2, $3, 1, NOW())
        ON CONFLICT (user_id, feature, year_month) DO UPDATE
        SET count = local_usage_counters.count + 1,
            updated_at = NOW()
        RETURNING count
    `
	var count int
	err := r.db.QueryRowContext(ctx, q, key.UserID, string(key.Feature), key.Month.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s usage for user %s: %w", key.Feature, key.UserID, err)
	}
	return count, nil
}

func (r *usageCounterRepo) Get(ctx context.Context, key model.CounterKey) (int, error) {
	const q = `
        SELECT count
        FROM local_usage_counters
        WHERE user_id = $1
          AND feature = $2
          AND year_month = $3
    `
	var count int
	err := r.db.QueryRowContext(ctx, q, key.UserID, string(key.Feature), key.Month.String()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetching %s usage for user %s: %w", key.Feature, key.UserID, err)
	}
	return count, nil
}

func (r *usageCounterRepo) Sweep(ctx context.Context, before model.YearMonth) (int64, error) {
	// year_month is zero-padded YYYY-MM, so text order is calendar order.
	const q = `DELETE FROM local_usage_counters WHERE year_month < $1`
	res, err := r.db.ExecContext(ctx, q, before.String())
	if err != nil {
		return 0, fmt.Errorf("sweeping usage counters before %s: %w", before, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept usage counters: %w", err)
	}
	return n, nil
}
