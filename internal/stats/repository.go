package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "screener/pkg/errors"
)

type Repository interface {
	Upsert(ctx context.Context, sample DailySample) error
	GetByDate(ctx context.Context, date time.Time) (*DailySample, error)
	Range(ctx context.Context, from, to time.Time) ([]DailySample, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, sample DailySample) error {
	query := `
		INSERT INTO classification_daily_samples
			(date, total_classified, blocked, allowed, cache_hits, cache_misses, avg_processing_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			total_classified = EXCLUDED.total_classified,
			blocked = EXCLUDED.blocked,
			allowed = EXCLUDED.allowed,
			cache_hits = EXCLUDED.cache_hits,
			cache_misses = EXCLUDED.cache_misses,
			avg_processing_ms = EXCLUDED.avg_processing_ms,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		dateOnly(sample.Date), sample.TotalClassified, sample.Blocked, sample.Allowed,
		sample.CacheHits, sample.CacheMisses, sample.AvgProcessingMs, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily sample: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByDate(ctx context.Context, date time.Time) (*DailySample, error) {
	query := `
		SELECT date, total_classified, blocked, allowed, cache_hits, cache_misses, avg_processing_ms, updated_at
		FROM classification_daily_samples
		WHERE date = $1
	`

	var sample DailySample
	err := r.db.QueryRowContext(ctx, query, dateOnly(date)).Scan(
		&sample.Date, &sample.TotalClassified, &sample.Blocked, &sample.Allowed,
		&sample.CacheHits, &sample.CacheMisses, &sample.AvgProcessingMs, &sample.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("date", dateOnly(date).Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily sample: %w", err)
	}

	return &sample, nil
}

func (r *PostgresRepository) Range(ctx context.Context, from, to time.Time) ([]DailySample, error) {
	query := `
		SELECT date, total_classified, blocked, allowed, cache_hits, cache_misses, avg_processing_ms, updated_at
		FROM classification_daily_samples
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query sample range: %w", err)
	}
	defer rows.Close()

	var samples []DailySample
	for rows.Next() {
		var sample DailySample
		if err := rows.Scan(
			&sample.Date, &sample.TotalClassified, &sample.Blocked, &sample.Allowed,
			&sample.CacheHits, &sample.CacheMisses, &sample.AvgProcessingMs, &sample.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily sample: %w", err)
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM classification_daily_samples WHERE date < $1`, dateOnly(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge samples: %w", err)
	}

	return res.RowsAffected()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
