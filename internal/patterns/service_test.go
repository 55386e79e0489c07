package patterns

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCRUDRepo struct {
	Repository

	mu     sync.Mutex
	byID   map[string]*Pattern
	nextID int
}

func newFakeCRUDRepo() *fakeCRUDRepo {
	return &fakeCRUDRepo{byID: make(map[string]*Pattern)}
}

func (f *fakeCRUDRepo) Create(ctx context.Context, pattern *Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	pattern.ID = fmt.Sprintf("p-%d", f.nextID)
	stored := *pattern
	f.byID[pattern.ID] = &stored
	return nil
}

func (f *fakeCRUDRepo) Get(ctx context.Context, id string) (*Pattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	copied := *p
	return &copied, nil
}

func (f *fakeCRUDRepo) Update(ctx context.Context, pattern *Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *pattern
	f.byID[pattern.ID] = &stored
	return nil
}

func (f *fakeCRUDRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeCRUDRepo) ListActiveByField(ctx context.Context) (map[TargetField][]Pattern, error) {
	return map[TargetField][]Pattern{}, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInvalidator) InvalidateAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeInvalidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testPatternService(t *testing.T, repo Repository, invalidator CacheInvalidator) (Service, *Store) {
	t.Helper()
	store := NewStore(repo, testLogger(t))
	svc := NewService(repo, store, testLogger(t), WithCacheInvalidator(invalidator))
	return svc, store
}

func TestService_MutationsInvalidateDecisionCache(t *testing.T) {
	repo := newFakeCRUDRepo()
	invalidator := &fakeInvalidator{}
	svc, store := testPatternService(t, repo, invalidator)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreatePatternRequest{
		Name:        "spam-title",
		Pattern:     "spam",
		Type:        PatternTypeKeyword,
		TargetField: TargetFieldTitle,
		Priority:    10,
	}, ChangeMeta{ChangedBy: "tester"})
	require.NoError(t, err)
	assert.Equal(t, 1, invalidator.callCount())
	assert.Equal(t, uint64(1), store.Generation())

	newName := "spam-title-2"
	_, err = svc.Update(ctx, created.ID, UpdatePatternRequest{Name: &newName}, ChangeMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, invalidator.callCount())

	require.NoError(t, svc.Delete(ctx, created.ID, ChangeMeta{}))
	assert.Equal(t, 3, invalidator.callCount())
	assert.Equal(t, uint64(3), store.Generation())
}

func TestService_InvalidationFailureDoesNotFailMutation(t *testing.T) {
	repo := newFakeCRUDRepo()
	invalidator := &fakeInvalidator{err: assert.AnError}
	svc, _ := testPatternService(t, repo, invalidator)

	created, err := svc.Create(context.Background(), CreatePatternRequest{
		Name:        "spam-title",
		Pattern:     "spam",
		Type:        PatternTypeKeyword,
		TargetField: TargetFieldTitle,
	}, ChangeMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, invalidator.callCount())
}

func TestService_RejectedWriteLeavesCacheAlone(t *testing.T) {
	repo := newFakeCRUDRepo()
	invalidator := &fakeInvalidator{}
	svc, store := testPatternService(t, repo, invalidator)

	_, err := svc.Create(context.Background(), CreatePatternRequest{
		Name:        "broken",
		Pattern:     "(unclosed",
		Type:        PatternTypeRegex,
		TargetField: TargetFieldTitle,
	}, ChangeMeta{})
	require.Error(t, err)
	assert.Equal(t, 0, invalidator.callCount())
	assert.Equal(t, uint64(0), store.Generation())
}
