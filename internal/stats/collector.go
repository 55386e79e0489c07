package stats

import (
	"context"
	"sync"
	"time"

	"screener/internal/logger"
	pkgerrors "screener/pkg/errors"
	"screener/pkg/metrics"
)

// Collector keeps the current day's aggregate in memory and persists
// it as a daily sample. The average is maintained incrementally so no
// raw evaluation log is needed.
type Collector struct {
	repo   Repository
	logger logger.Logger
	now    func() time.Time

	mu            sync.Mutex
	today         DailySample
	lastFlush     time.Time
	flushInterval time.Duration
}

type CollectorOption func(*Collector)

// WithNow overrides the time source.
func WithNow(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

func WithFlushInterval(interval time.Duration) CollectorOption {
	return func(c *Collector) {
		c.flushInterval = interval
	}
}

func NewCollector(repo Repository, log logger.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		repo:          repo,
		logger:        log,
		now:           time.Now,
		flushInterval: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	today := dateOnly(c.now())
	c.today = DailySample{Date: today}

	// A restart mid-day resumes the stored aggregate; the upsert
	// replaces the row wholesale, so starting from zero would wipe
	// everything recorded before the restart.
	if existing, err := repo.GetByDate(context.Background(), today); err == nil {
		c.today = *existing
		c.today.Date = today
	} else if !pkgerrors.IsNotFound(err) {
		log.ErrorwCtx(context.Background(), "Failed to restore daily sample", "error", err)
	}

	return c
}

// Record folds one evaluation into the current day's aggregate. When
// the calendar day rolls over, the finished day is flushed and a fresh
// aggregate starts.
func (c *Collector) Record(ctx context.Context, eval Evaluation) {
	c.mu.Lock()

	today := dateOnly(c.now())
	if !c.today.Date.Equal(today) {
		finished := c.today
		c.today = DailySample{Date: today}
		c.mu.Unlock()
		c.persist(ctx, finished)
		c.mu.Lock()
	}

	c.today.TotalClassified++
	if eval.Outcome == "block" {
		c.today.Blocked++
	} else {
		c.today.Allowed++
	}
	if eval.FromCache {
		c.today.CacheHits++
	} else {
		c.today.CacheMisses++
	}

	// Incremental mean: avg' = avg + (x - avg) / n.
	n := float64(c.today.TotalClassified)
	c.today.AvgProcessingMs += (eval.DurationMs - c.today.AvgProcessingMs) / n

	if total := c.today.CacheHits + c.today.CacheMisses; total > 0 {
		metrics.SetDecisionCacheHitRate(float64(c.today.CacheHits) / float64(total))
	}

	needsFlush := c.now().Sub(c.lastFlush) >= c.flushInterval
	if needsFlush {
		c.lastFlush = c.now()
	}
	snapshot := c.today
	c.mu.Unlock()

	if needsFlush {
		c.persist(ctx, snapshot)
	}
}

func (c *Collector) persist(ctx context.Context, sample DailySample) {
	if err := c.repo.Upsert(ctx, sample); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to persist daily sample",
			"date", sample.Date.Format("2006-01-02"), "error", err)
	}
}

// Flush writes the in-memory aggregate out immediately. Used on
// shutdown and by the recompute admin operation.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	snapshot := c.today
	c.lastFlush = c.now()
	c.mu.Unlock()

	return c.repo.Upsert(ctx, snapshot)
}

// DailySummary returns the aggregate for one day. Today is served from
// memory; past days come from the store.
func (c *Collector) DailySummary(ctx context.Context, date time.Time) (*DailySample, error) {
	c.mu.Lock()
	today := c.today
	c.mu.Unlock()

	if dateOnly(date).Equal(today.Date) {
		return &today, nil
	}

	return c.repo.GetByDate(ctx, date)
}

// Trend compares the last windowDays against the preceding windowDays.
// A nil report means the preceding window has no samples to compare
// against.
func (c *Collector) Trend(ctx context.Context, windowDays int) (*TrendReport, error) {
	if windowDays <= 0 {
		windowDays = 7
	}

	today := dateOnly(c.now())
	currentFrom := today.AddDate(0, 0, -(windowDays - 1))
	previousTo := currentFrom.AddDate(0, 0, -1)
	previousFrom := previousTo.AddDate(0, 0, -(windowDays - 1))

	current, err := c.repo.Range(ctx, currentFrom, today)
	if err != nil {
		return nil, err
	}
	previous, err := c.repo.Range(ctx, previousFrom, previousTo)
	if err != nil {
		return nil, err
	}

	// Fold the live aggregate in; today's row may not be flushed yet.
	c.mu.Lock()
	live := c.today
	c.mu.Unlock()
	if live.TotalClassified > 0 {
		replaced := false
		for i := range current {
			if current[i].Date.Equal(live.Date) {
				current[i] = live
				replaced = true
				break
			}
		}
		if !replaced && !live.Date.Before(currentFrom) && !live.Date.After(today) {
			current = append(current, live)
		}
	}

	if len(previous) == 0 {
		return nil, nil
	}

	return &TrendReport{
		WindowDays:      windowDays,
		AvgProcessingMs: trendMetric(avgProcessing(current), avgProcessing(previous)),
		BlockedCount:    trendMetric(totalBlocked(current), totalBlocked(previous)),
	}, nil
}

func avgProcessing(samples []DailySample) float64 {
	var weighted float64
	var total int64
	for _, s := range samples {
		weighted += s.AvgProcessingMs * float64(s.TotalClassified)
		total += s.TotalClassified
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}

func totalBlocked(samples []DailySample) float64 {
	var total int64
	for _, s := range samples {
		total += s.Blocked
	}
	return float64(total)
}

func trendMetric(current, previous float64) TrendMetric {
	metric := TrendMetric{
		Current:  current,
		Previous: previous,
	}

	if previous != 0 {
		metric.PercentChange = (current - previous) / previous * 100
	} else if current != 0 {
		metric.PercentChange = 100
	}

	switch {
	case metric.PercentChange > 0.001:
		metric.Direction = TrendUp
	case metric.PercentChange < -0.001:
		metric.Direction = TrendDown
	default:
		metric.Direction = TrendStable
	}

	return metric
}

// Purge removes samples older than the retention window.
func (c *Collector) Purge(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := dateOnly(c.now()).AddDate(0, 0, -retentionDays)
	return c.repo.DeleteOlderThan(ctx, cutoff)
}
