package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/stats"
	pkgerrors "screener/pkg/errors"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStatsRepository_UpsertAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := stats.NewRepository(infra.PostgresDB)

	sample := stats.DailySample{
		Date:            day("2026-08-01"),
		TotalClassified: 100,
		Blocked:         30,
		Allowed:         70,
		CacheHits:       60,
		CacheMisses:     40,
		AvgProcessingMs: 12.5,
	}
	require.NoError(t, repo.Upsert(ctx, sample))

	got, err := repo.GetByDate(ctx, day("2026-08-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalClassified)
	assert.Equal(t, int64(30), got.Blocked)
	assert.InDelta(t, 12.5, got.AvgProcessingMs, 0.001)

	sample.TotalClassified = 150
	sample.Blocked = 45
	require.NoError(t, repo.Upsert(ctx, sample))

	got, err = repo.GetByDate(ctx, day("2026-08-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.TotalClassified)
	assert.Equal(t, int64(45), got.Blocked)
}

func TestStatsRepository_GetByDate_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := stats.NewRepository(infra.PostgresDB)

	_, err := repo.GetByDate(ctx, day("1999-01-01"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStatsRepository_Range(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := stats.NewRepository(infra.PostgresDB)

	for _, d := range []string{"2026-08-01", "2026-08-02", "2026-08-03", "2026-08-10"} {
		require.NoError(t, repo.Upsert(ctx, stats.DailySample{Date: day(d), TotalClassified: 1}))
	}

	samples, err := repo.Range(ctx, day("2026-08-01"), day("2026-08-03"))
	require.NoError(t, err)

	require.Len(t, samples, 3)
	assert.Equal(t, day("2026-08-01"), samples[0].Date.UTC())
	assert.Equal(t, day("2026-08-03"), samples[2].Date.UTC())
}

func TestStatsRepository_DeleteOlderThan(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := stats.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.Upsert(ctx, stats.DailySample{Date: day("2026-01-01"), TotalClassified: 1}))
	require.NoError(t, repo.Upsert(ctx, stats.DailySample{Date: day("2026-08-01"), TotalClassified: 1}))

	deleted, err := repo.DeleteOlderThan(ctx, day("2026-06-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByDate(ctx, day("2026-01-01"))
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = repo.GetByDate(ctx, day("2026-08-01"))
	assert.NoError(t, err)
}
