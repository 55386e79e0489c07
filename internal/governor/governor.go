package governor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"screener/internal/config"
	"screener/internal/logger"
	"screener/pkg/errors"
	"screener/pkg/metrics"
)

// Governor paces outbound calls per operation class. Each class owns an
// independent sliding window, so a saturated class never delays another.
type Governor struct {
	mu      sync.Mutex
	classes map[string]*classState

	cfg    config.GovernorConfig
	clock  Clock
	logger logger.Logger
}

type classState struct {
	cfg config.RateWindowConfig

	// queue admits one call at a time; the slot is held until the call
	// returns, and blocked callers are woken in arrival order.
	queue chan struct{}

	mu           sync.Mutex
	timestamps   []time.Time
	lastDispatch time.Time
}

type Option func(*Governor)

func WithClock(clock Clock) Option {
	return func(g *Governor) {
		g.clock = clock
	}
}

func New(cfg config.GovernorConfig, log logger.Logger, opts ...Option) *Governor {
	g := &Governor{
		classes: make(map[string]*classState),
		cfg:     cfg,
		clock:   NewRealClock(),
		logger:  log,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Governor) state(class string) *classState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if st, ok := g.classes[class]; ok {
		return st
	}

	cfg, ok := g.cfg.Classes[class]
	if !ok {
		cfg = g.cfg.Default
	}

	st := &classState{
		cfg:   cfg,
		queue: make(chan struct{}, 1),
	}
	g.classes[class] = st
	return st
}

// Execute runs fn once the class window has capacity. Callers are
// admitted in arrival order and the slot is held until fn returns, so
// a class never has two calls in flight at once.
func (g *Governor) Execute(ctx context.Context, class string, fn func(ctx context.Context) error) error {
	st := g.state(class)
	waitStart := g.clock.Now()

	metrics.GovernorQueueDepth.WithLabelValues(class).Inc()
	select {
	case st.queue <- struct{}{}:
	case <-ctx.Done():
		metrics.GovernorQueueDepth.WithLabelValues(class).Dec()
		metrics.GovernorRequestsTotal.WithLabelValues(class, "cancelled").Inc()
		return errors.ErrTimeout.WithCause(ctx.Err()).WithDetail("operation_class", class)
	}
	metrics.GovernorQueueDepth.WithLabelValues(class).Dec()
	defer func() { <-st.queue }()

	delay := st.requiredDelay(g.clock.Now())
	if delay > 0 {
		if err := g.clock.Sleep(ctx, delay); err != nil {
			metrics.GovernorRequestsTotal.WithLabelValues(class, "cancelled").Inc()
			return errors.ErrTimeout.WithCause(err).WithDetail("operation_class", class)
		}
	}

	st.recordDispatch(g.clock.Now())

	waited := g.clock.Now().Sub(waitStart)
	metrics.ObserveGovernorWait(class, waited)
	metrics.GovernorRequestsTotal.WithLabelValues(class, "dispatched").Inc()

	return fn(ctx)
}

// TryExecute dispatches fn only if the class can admit it right now.
// Like Execute, the slot is held for the duration of fn.
func (g *Governor) TryExecute(ctx context.Context, class string, fn func(ctx context.Context) error) error {
	st := g.state(class)

	select {
	case st.queue <- struct{}{}:
	default:
		metrics.GovernorRequestsTotal.WithLabelValues(class, "rejected").Inc()
		return errors.ErrRateLimited.WithDetail("operation_class", class)
	}
	defer func() { <-st.queue }()

	if delay := st.requiredDelay(g.clock.Now()); delay > 0 {
		metrics.GovernorRequestsTotal.WithLabelValues(class, "rejected").Inc()
		return errors.ErrRateLimited.
			WithDetail("operation_class", class).
			WithDetail("retry_after_ms", delay.Milliseconds())
	}

	st.recordDispatch(g.clock.Now())

	metrics.GovernorRequestsTotal.WithLabelValues(class, "dispatched").Inc()
	return fn(ctx)
}

// requiredDelay returns how long the next dispatch must wait to keep
// the window under maxRequests and at least minSpacing behind the
// previous dispatch. Jitter is added on top of any positive wait.
func (st *classState) requiredDelay(now time.Time) time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()

	window := time.Duration(st.cfg.WindowMs) * time.Millisecond
	st.prune(now, window)

	var delay time.Duration
	if st.cfg.MaxRequests > 0 && len(st.timestamps) >= st.cfg.MaxRequests {
		oldest := st.timestamps[len(st.timestamps)-st.cfg.MaxRequests]
		delay = oldest.Add(window).Sub(now)
	}

	if spacing := time.Duration(st.cfg.MinSpacingMs) * time.Millisecond; spacing > 0 && !st.lastDispatch.IsZero() {
		if spacingDelay := st.lastDispatch.Add(spacing).Sub(now); spacingDelay > delay {
			delay = spacingDelay
		}
	}

	if delay <= 0 {
		return 0
	}

	if st.cfg.JitterMaxMs > 0 {
		delay += time.Duration(rand.Int63n(int64(st.cfg.JitterMaxMs)+1)) * time.Millisecond
	}

	return delay
}

func (st *classState) recordDispatch(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.timestamps = append(st.timestamps, now)
	st.lastDispatch = now
	st.prune(now, time.Duration(st.cfg.WindowMs)*time.Millisecond)
}

// prune drops timestamps that fell out of the trailing window. Caller
// holds st.mu.
func (st *classState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(st.timestamps) && !st.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		st.timestamps = st.timestamps[idx:]
	}
}
