package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/config"
	"screener/internal/logger"
	"screener/pkg/errors"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func testGovernor(t *testing.T, clock Clock, classes map[string]config.RateWindowConfig) *Governor {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)

	cfg := config.GovernorConfig{
		Classes: classes,
		Default: config.RateWindowConfig{MaxRequests: 10, WindowMs: 1000},
	}
	return New(cfg, log, WithClock(clock))
}

func noop(ctx context.Context) error { return nil }

func TestGovernor_WindowAdmitsUpToMax(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 5, WindowMs: 1000},
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))
	}

	assert.Equal(t, 0, clock.sleepCount())
}

func TestGovernor_SixthRequestWaitsForWindow(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 5, WindowMs: 1000},
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))
	}

	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))

	require.Equal(t, 1, clock.sleepCount())
	assert.Equal(t, time.Second, clock.sleeps[0])
}

func TestGovernor_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 2, WindowMs: 1000},
	})

	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))
	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))

	clock.advance(1001 * time.Millisecond)

	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))
	assert.Equal(t, 0, clock.sleepCount())
}

func TestGovernor_MinSpacingBetweenDispatches(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"search": {MaxRequests: 10, WindowMs: 1000, MinSpacingMs: 200},
	})

	require.NoError(t, g.Execute(context.Background(), "search", noop))
	require.NoError(t, g.Execute(context.Background(), "search", noop))

	require.Equal(t, 1, clock.sleepCount())
	assert.Equal(t, 200*time.Millisecond, clock.sleeps[0])
}

func TestGovernor_ClassesDoNotBlockEachOther(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch":   {MaxRequests: 1, WindowMs: 1000},
		"channel-fetch": {MaxRequests: 1, WindowMs: 1000},
	})

	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))
	require.NoError(t, g.Execute(context.Background(), "channel-fetch", noop))

	assert.Equal(t, 0, clock.sleepCount())
}

func TestGovernor_ExecuteSerializesCallsWithinClass(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"channel-fetch": {MaxRequests: 100, WindowMs: 1000},
	})

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Execute(context.Background(), "channel-fetch", func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					seen := atomic.LoadInt32(&maxInFlight)
					if n <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestGovernor_TryExecuteRejectsWhenExhausted(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 1, WindowMs: 1000},
	})

	require.NoError(t, g.TryExecute(context.Background(), "video-fetch", noop))

	err := g.TryExecute(context.Background(), "video-fetch", noop)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, 0, clock.sleepCount())
}

func TestGovernor_TryExecuteRecoversAfterWindow(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 1, WindowMs: 1000},
	})

	require.NoError(t, g.TryExecute(context.Background(), "video-fetch", noop))
	clock.advance(1001 * time.Millisecond)
	require.NoError(t, g.TryExecute(context.Background(), "video-fetch", noop))
}

func TestGovernor_ExecuteHonorsCancelledContext(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, map[string]config.RateWindowConfig{
		"video-fetch": {MaxRequests: 1, WindowMs: 1000},
	})

	require.NoError(t, g.Execute(context.Background(), "video-fetch", noop))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := g.Execute(ctx, "video-fetch", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestGovernor_UnknownClassUsesDefault(t *testing.T) {
	clock := newFakeClock()
	g := testGovernor(t, clock, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, g.Execute(context.Background(), "unknown", noop))
	}
	assert.Equal(t, 0, clock.sleepCount())

	require.NoError(t, g.Execute(context.Background(), "unknown", noop))
	assert.Equal(t, 1, clock.sleepCount())
}
