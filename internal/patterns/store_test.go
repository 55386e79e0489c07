package patterns

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/logger"
)

type fakeRepo struct {
	Repository

	mu        sync.Mutex
	active    map[TargetField][]Pattern
	loadCount atomic.Int64
}

func (f *fakeRepo) ListActiveByField(ctx context.Context) (map[TargetField][]Pattern, error) {
	f.loadCount.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeRepo) setActive(active map[TargetField][]Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestStore_ActiveCachesSnapshot(t *testing.T) {
	repo := &fakeRepo{active: map[TargetField][]Pattern{
		TargetFieldTitle: {{ID: "p1", Pattern: "spam", Type: PatternTypeKeyword, TargetField: TargetFieldTitle, IsActive: true}},
	}}
	store := NewStore(repo, testLogger(t))

	first, err := store.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)

	second, err := store.Active(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), repo.loadCount.Load())
}

func TestStore_BumpInvalidatesSnapshot(t *testing.T) {
	repo := &fakeRepo{active: map[TargetField][]Pattern{}}
	store := NewStore(repo, testLogger(t))

	_, err := store.Active(context.Background())
	require.NoError(t, err)

	repo.setActive(map[TargetField][]Pattern{
		TargetFieldChannel: {{ID: "p2", Pattern: "drama", Type: PatternTypeKeyword, TargetField: TargetFieldChannel, IsActive: true}},
	})

	before := store.Generation()
	after := store.Bump()
	assert.Equal(t, before+1, after)

	snapshot, err := store.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, after, snapshot.Generation)
	assert.Len(t, snapshot.ByField[TargetFieldChannel], 1)
	assert.Equal(t, int64(2), repo.loadCount.Load())
}

func TestStore_SnapshotOrderedByPriorityAcrossFields(t *testing.T) {
	repo := &fakeRepo{active: map[TargetField][]Pattern{
		TargetFieldTitle: {
			{ID: "b", Pattern: "spam", Type: PatternTypeKeyword, TargetField: TargetFieldTitle, Priority: 10, IsActive: true},
			{ID: "c", Pattern: "scam", Type: PatternTypeKeyword, TargetField: TargetFieldTitle, Priority: 5, IsActive: true},
		},
		TargetFieldChannel: {
			{ID: "a", Pattern: "drama", Type: PatternTypeKeyword, TargetField: TargetFieldChannel, Priority: 10, IsActive: true},
		},
	}}
	store := NewStore(repo, testLogger(t))

	snapshot, err := store.Active(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(snapshot.Ordered))
	for _, cp := range snapshot.Ordered {
		ids = append(ids, cp.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_SkipsCorruptRegex(t *testing.T) {
	repo := &fakeRepo{active: map[TargetField][]Pattern{
		TargetFieldTitle: {
			{ID: "good", Pattern: "breaking.*news", Type: PatternTypeRegex, TargetField: TargetFieldTitle, IsActive: true},
			{ID: "corrupt", Pattern: "(unclosed", Type: PatternTypeRegex, TargetField: TargetFieldTitle, IsActive: true},
		},
	}}
	store := NewStore(repo, testLogger(t))

	snapshot, err := store.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.ByField[TargetFieldTitle], 1)
	assert.Equal(t, "good", snapshot.ByField[TargetFieldTitle][0].ID)
	assert.NotNil(t, snapshot.ByField[TargetFieldTitle][0].Regex)
}

func TestStore_ConcurrentColdReadsLoadOnce(t *testing.T) {
	repo := &fakeRepo{active: map[TargetField][]Pattern{}}
	store := NewStore(repo, testLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Active(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), repo.loadCount.Load())
}
