package decisioncache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_PutGet(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()
	ctx := context.Background()

	patternID := "p1"
	cache.Put(ctx, "k1", Decision{Outcome: "block", MatchedPatternID: &patternID}, time.Minute)

	decision, ok := cache.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "block", decision.Outcome)
	require.NotNil(t, decision.MatchedPatternID)
	assert.Equal(t, "p1", *decision.MatchedPatternID)
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	_, ok := cache.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestMemoryCache_LazyExpiry(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()
	ctx := context.Background()

	cache.Put(ctx, "k1", Decision{Outcome: "allow"}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemoryCache_InvalidateAllBumpsGeneration(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()
	ctx := context.Background()

	before := cache.Generation(ctx)
	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Equal(t, before+1, cache.Generation(ctx))
}

func TestKey_ChangesWithGenerations(t *testing.T) {
	fields := []string{"title", "channel", "description", "tag1,tag2"}

	base := Key("decision:", "video-1", fields, 1, 0)
	samePattern := Key("decision:", "video-1", fields, 1, 0)
	bumpedPatternGen := Key("decision:", "video-1", fields, 2, 0)
	bumpedCacheGen := Key("decision:", "video-1", fields, 1, 1)
	otherItem := Key("decision:", "video-2", fields, 1, 0)
	otherContent := Key("decision:", "video-1", []string{"title2", "channel", "description", "tag1,tag2"}, 1, 0)

	assert.Equal(t, base, samePattern)
	assert.NotEqual(t, base, bumpedPatternGen)
	assert.NotEqual(t, base, bumpedCacheGen)
	assert.NotEqual(t, base, otherItem)
	assert.NotEqual(t, base, otherContent)
}
