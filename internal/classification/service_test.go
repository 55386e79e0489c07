package classification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/config"
	"screener/internal/decisioncache"
	"screener/internal/logger"
	"screener/internal/patterns"
	"screener/internal/provider"
	"screener/internal/stats"
)

type fakePatternRepo struct {
	patterns.Repository

	mu         sync.Mutex
	active     map[patterns.TargetField][]patterns.Pattern
	loadErr    error
	increments map[string]int
}

func newFakePatternRepo(active map[patterns.TargetField][]patterns.Pattern) *fakePatternRepo {
	return &fakePatternRepo{
		active:     active,
		increments: make(map[string]int),
	}
}

func (f *fakePatternRepo) ListActiveByField(ctx context.Context) (map[patterns.TargetField][]patterns.Pattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.active, nil
}

func (f *fakePatternRepo) IncrementMatchCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[id]++
	return nil
}

func (f *fakePatternRepo) incrementsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increments[id]
}

type fakeRecorder struct {
	mu    sync.Mutex
	evals []stats.Evaluation
}

func (f *fakeRecorder) Record(ctx context.Context, eval stats.Evaluation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, eval)
}

func testService(t *testing.T, repo patterns.Repository, fallbackPolicy string) (*Service, *patterns.Store, *fakeRecorder) {
	t.Helper()

	log, err := logger.New("error")
	require.NoError(t, err)

	store := patterns.NewStore(repo, log)
	cache := decisioncache.NewMemoryCache(0)
	t.Cleanup(cache.Close)
	recorder := &fakeRecorder{}

	svc := NewService(store, repo, cache, recorder,
		config.ClassificationConfig{Fallback: config.FallbackConfig{OnError: fallbackPolicy}},
		config.CacheConfig{TTLSeconds: 60, KeyPrefix: "decision:"},
		log,
	)
	return svc, store, recorder
}

func pattern(id, text string, patternType patterns.PatternType, field patterns.TargetField, priority int) patterns.Pattern {
	return patterns.Pattern{
		ID:          id,
		Name:        id,
		Pattern:     text,
		Type:        patternType,
		TargetField: field,
		Priority:    priority,
		IsActive:    true,
	}
}

func TestClassify_FirstMatchWinsByPriority(t *testing.T) {
	// priority DESC with id ASC tiebreak, as the repository orders them
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p-keyword", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 20),
			pattern("p-wildcard", "*spam*", patterns.PatternTypeWildcard, patterns.TargetFieldTitle, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID: "v1",
		Title:   "obvious spam video",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlock, decision.Outcome)
	require.NotNil(t, decision.MatchedPatternID)
	assert.Equal(t, "p-keyword", *decision.MatchedPatternID)
	assert.False(t, decision.FromCache)
}

func TestClassify_PriorityOrderedAcrossFields(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p-title", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 5),
		},
		patterns.TargetFieldChannel: {
			pattern("p-channel", "dramachannel", patterns.PatternTypeKeyword, patterns.TargetFieldChannel, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID:     "v1",
		Title:       "obvious spam video",
		ChannelName: "DramaChannel Official",
	})
	require.NoError(t, err)

	require.NotNil(t, decision.MatchedPatternID)
	assert.Equal(t, "p-channel", *decision.MatchedPatternID)
}

func TestClassify_AllowWhenNothingMatches(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p1", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID: "v1",
		Title:   "woodworking basics",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAllow, decision.Outcome)
	assert.Nil(t, decision.MatchedPatternID)
}

func TestClassify_SecondCallServedFromCache(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p1", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10),
		},
	})
	svc, _, recorder := testService(t, repo, "allow")
	req := ClassificationRequest{VideoID: "v1", Title: "spam alert"}

	first, err := svc.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := svc.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, *first.MatchedPatternID, *second.MatchedPatternID)

	// The cached entry keeps the original evaluation time.
	assert.False(t, first.EvaluatedAt.IsZero())
	assert.Equal(t, first.EvaluatedAt, second.EvaluatedAt)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.evals, 2)
	assert.False(t, recorder.evals[0].FromCache)
	assert.True(t, recorder.evals[1].FromCache)
}

func TestClassify_GenerationBumpInvalidatesCache(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p1", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10),
		},
	})
	svc, store, _ := testService(t, repo, "allow")
	req := ClassificationRequest{VideoID: "v1", Title: "spam alert"}

	_, err := svc.Classify(context.Background(), req)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.active = map[patterns.TargetField][]patterns.Pattern{}
	repo.mu.Unlock()
	store.Bump()

	decision, err := svc.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, decision.FromCache)
	assert.Equal(t, OutcomeAllow, decision.Outcome)
}

func TestClassify_BlockIncrementsMatchCount(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldChannel: {
			pattern("p1", "dramachannel", patterns.PatternTypeKeyword, patterns.TargetFieldChannel, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")

	_, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID:     "v1",
		ChannelName: "DramaChannel Official",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.incrementsFor("p1"))
}

func TestClassify_TagsMatchIndividually(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTags: {
			pattern("p1", "crypto", patterns.PatternTypeKeyword, patterns.TargetFieldTags, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID: "v1",
		Title:   "market news",
		Tags:    []string{"finance", "crypto", "daily"},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlock, decision.Outcome)
}

func TestClassify_FallbackAllowOnLoadFailure(t *testing.T) {
	repo := newFakePatternRepo(nil)
	repo.loadErr = assert.AnError
	svc, _, _ := testService(t, repo, "allow")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{VideoID: "v1", Title: "anything"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllow, decision.Outcome)
}

func TestClassify_FallbackBlockOnLoadFailure(t *testing.T) {
	repo := newFakePatternRepo(nil)
	repo.loadErr = assert.AnError
	svc, _, _ := testService(t, repo, "block")

	decision, err := svc.Classify(context.Background(), ClassificationRequest{VideoID: "v1", Title: "anything"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlock, decision.Outcome)
}

type fakeFetcher struct {
	meta *provider.VideoMetadata
	err  error
}

func (f *fakeFetcher) GetVideo(ctx context.Context, videoID string) (*provider.VideoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

func TestClassify_ResolvesMetadataWhenFieldsAbsent(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p1", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10),
		},
	})
	svc, _, _ := testService(t, repo, "allow")
	svc.fetcher = &fakeFetcher{meta: &provider.VideoMetadata{
		Title:       "spam compilation",
		ChannelName: "SomeChannel",
	}}

	decision, err := svc.Classify(context.Background(), ClassificationRequest{VideoID: "v1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlock, decision.Outcome)
	require.NotNil(t, decision.MatchedPatternID)
	assert.Equal(t, "p1", *decision.MatchedPatternID)
}

func TestClassify_SuppliedFieldsSkipMetadataLookup(t *testing.T) {
	repo := newFakePatternRepo(nil)
	svc, _, _ := testService(t, repo, "allow")
	svc.fetcher = &fakeFetcher{err: assert.AnError}

	decision, err := svc.Classify(context.Background(), ClassificationRequest{
		VideoID: "v1",
		Title:   "gardening tips",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllow, decision.Outcome)
}

func TestClassify_FallbackOnMetadataFailure(t *testing.T) {
	repo := newFakePatternRepo(nil)
	svc, _, _ := testService(t, repo, "block")
	svc.fetcher = &fakeFetcher{err: assert.AnError}

	decision, err := svc.Classify(context.Background(), ClassificationRequest{VideoID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlock, decision.Outcome)
}

func TestClassify_FallbackResultIsNotCached(t *testing.T) {
	repo := newFakePatternRepo(map[patterns.TargetField][]patterns.Pattern{
		patterns.TargetFieldTitle: {
			pattern("p1", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10),
		},
	})
	svc, _, _ := testService(t, repo, "block")
	req := ClassificationRequest{VideoID: "v1", Title: "spam alert"}

	repo.mu.Lock()
	repo.loadErr = assert.AnError
	repo.mu.Unlock()

	decision, err := svc.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlock, decision.Outcome)

	// Load recovers; the fallback verdict must not linger.
	repo.mu.Lock()
	repo.loadErr = nil
	repo.mu.Unlock()

	decision, err = svc.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, decision.FromCache)
	require.NotNil(t, decision.MatchedPatternID)
	assert.Equal(t, "p1", *decision.MatchedPatternID)
}
