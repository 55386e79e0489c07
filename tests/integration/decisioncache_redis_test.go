package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/decisioncache"
)

func TestRedisCache_PutAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	cache := decisioncache.NewRedisCache(infra.RedisClient, createTestLogger())

	patternID := "p-1"
	evaluatedAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	key := decisioncache.Key("decision:", "vid-1", []string{"title", "channel"}, 1, 0)
	cache.Put(ctx, key, decisioncache.Decision{
		Outcome:          "block",
		MatchedPatternID: &patternID,
		EvaluatedAt:      evaluatedAt,
	}, time.Minute)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "block", got.Outcome)
	require.NotNil(t, got.MatchedPatternID)
	assert.Equal(t, "p-1", *got.MatchedPatternID)
	assert.True(t, got.EvaluatedAt.Equal(evaluatedAt))
}

func TestRedisCache_Miss(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	cache := decisioncache.NewRedisCache(infra.RedisClient, createTestLogger())

	_, ok := cache.Get(ctx, "decision:absent")
	assert.False(t, ok)
}

func TestRedisCache_Expiry(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	cache := decisioncache.NewRedisCache(infra.RedisClient, createTestLogger())

	key := decisioncache.Key("decision:", "vid-ttl", []string{"title"}, 1, 0)
	cache.Put(ctx, key, decisioncache.Decision{Outcome: "allow"}, 100*time.Millisecond)

	_, ok := cache.Get(ctx, key)
	require.True(t, ok)

	time.Sleep(200 * time.Millisecond)

	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCache_InvalidateAllAdvancesGeneration(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	cache := decisioncache.NewRedisCache(infra.RedisClient, createTestLogger())

	before := cache.Generation(ctx)

	require.NoError(t, cache.InvalidateAll(ctx))
	require.NoError(t, cache.InvalidateAll(ctx))

	after := cache.Generation(ctx)
	assert.Equal(t, before+2, after)

	// Old entries become unreachable because the generation is part of
	// every key.
	oldKey := decisioncache.Key("decision:", "vid-1", []string{"title"}, 1, before)
	newKey := decisioncache.Key("decision:", "vid-1", []string{"title"}, 1, after)
	assert.NotEqual(t, oldKey, newKey)
}
