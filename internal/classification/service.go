package classification

import (
	"context"
	"strings"
	"time"

	"screener/internal/config"
	"screener/internal/constants"
	"screener/internal/decisioncache"
	"screener/internal/logger"
	"screener/internal/patterns"
	"screener/internal/provider"
	"screener/internal/stats"
	"screener/pkg/metrics"
	"screener/pkg/tracing"
)

// Recorder receives finished evaluations for daily aggregation.
type Recorder interface {
	Record(ctx context.Context, eval stats.Evaluation)
}

// MetadataFetcher resolves the classification fields when the caller
// only knows the video ID.
type MetadataFetcher interface {
	GetVideo(ctx context.Context, videoID string) (*provider.VideoMetadata, error)
}

type Service struct {
	store    *patterns.Store
	repo     patterns.Repository
	cache    decisioncache.Cache
	recorder Recorder
	fetcher  MetadataFetcher
	cfg      config.ClassificationConfig
	cacheCfg config.CacheConfig
	logger   logger.Logger
}

type Option func(*Service)

// WithMetadataFetcher enables classify-by-ID requests that carry no
// content fields.
func WithMetadataFetcher(fetcher MetadataFetcher) Option {
	return func(s *Service) {
		s.fetcher = fetcher
	}
}

func NewService(
	store *patterns.Store,
	repo patterns.Repository,
	cache decisioncache.Cache,
	recorder Recorder,
	cfg config.ClassificationConfig,
	cacheCfg config.CacheConfig,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:    store,
		repo:     repo,
		cache:    cache,
		recorder: recorder,
		cfg:      cfg,
		cacheCfg: cacheCfg,
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Classify decides whether an item is shown or hidden. Cached
// decisions are served as-is; otherwise active patterns are evaluated
// field by field in priority order and the first match wins.
func (s *Service) Classify(ctx context.Context, req ClassificationRequest) (*ClassificationDecision, error) {
	ctx, span := tracing.GetTracer("classification-service").Start(ctx, "classification.classify")
	defer span.End()

	start := time.Now()

	if s.fetcher != nil && needsMetadata(req) {
		meta, err := s.fetcher.GetVideo(ctx, req.VideoID)
		if err != nil {
			return s.fallback(ctx, err, start, "metadata_fetch_failure"), nil
		}
		req.Title = meta.Title
		req.ChannelName = meta.ChannelName
		req.Description = meta.Description
		req.Tags = meta.Tags
	}

	fields := contentFields(req)
	key := decisioncache.Key(
		s.keyPrefix(), req.VideoID, fields,
		s.store.Generation(), s.cache.Generation(ctx),
	)

	if cached, ok := s.cache.Get(ctx, key); ok {
		metrics.DecisionCacheRequestsTotal.WithLabelValues("hit").Inc()
		decision := &ClassificationDecision{
			Outcome:          Outcome(cached.Outcome),
			MatchedPatternID: cached.MatchedPatternID,
			FromCache:        true,
			EvaluatedAt:      cached.EvaluatedAt,
		}
		s.finish(ctx, decision, start, "cache")
		return decision, nil
	}
	metrics.DecisionCacheRequestsTotal.WithLabelValues("miss").Inc()

	snapshot, err := s.store.Active(ctx)
	if err != nil {
		return s.fallback(ctx, err, start, "pattern_load_failure"), nil
	}

	decision := s.evaluate(ctx, snapshot, req)
	decision.EvaluatedAt = start

	if decision.Outcome == OutcomeBlock && decision.MatchedPatternID != nil {
		if err := s.repo.IncrementMatchCount(ctx, *decision.MatchedPatternID); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to increment match count",
				"pattern_id", *decision.MatchedPatternID, "error", err)
		}
	}

	s.cache.Put(ctx, key, decisioncache.Decision{
		Outcome:          string(decision.Outcome),
		MatchedPatternID: decision.MatchedPatternID,
		EvaluatedAt:      decision.EvaluatedAt,
	}, s.cacheTTL())

	s.finish(ctx, decision, start, "engine")
	return decision, nil
}

func (s *Service) evaluate(ctx context.Context, snapshot *patterns.Snapshot, req ClassificationRequest) *ClassificationDecision {
	ctx, span := tracing.GetTracer("classification-service").Start(ctx, "classification.evaluate")
	defer span.End()

	// A single walk in global priority order keeps attribution
	// unambiguous when patterns on different fields would both match.
	for _, cp := range snapshot.Ordered {
		matched := false
		for _, value := range fieldValues(req, cp.TargetField) {
			if matches(cp, value) {
				matched = true
				break
			}
		}

		if matched {
			metrics.PatternEvaluationsTotal.WithLabelValues(string(cp.Type), "match").Inc()
			patternID := cp.ID
			s.logger.DebugwCtx(ctx, "Pattern matched",
				"pattern_id", patternID, "field", cp.TargetField, "video_id", req.VideoID)
			return &ClassificationDecision{
				Outcome:          OutcomeBlock,
				MatchedPatternID: &patternID,
			}
		}
		metrics.PatternEvaluationsTotal.WithLabelValues(string(cp.Type), "no_match").Inc()
	}

	return &ClassificationDecision{Outcome: OutcomeAllow}
}

// fallback applies the configured verdict when evaluation itself is
// impossible. The result is deliberately not cached so recovery is
// immediate.
func (s *Service) fallback(ctx context.Context, cause error, start time.Time, reason string) *ClassificationDecision {
	policy := s.cfg.Fallback.OnError
	if policy == "" {
		policy = constants.FallbackAllow
	}

	metrics.FallbackUsageTotal.WithLabelValues(policy, reason).Inc()
	s.logger.ErrorwCtx(ctx, "Classification fallback engaged",
		"policy", policy, "reason", reason, "error", cause)

	outcome := OutcomeAllow
	if policy == constants.FallbackBlock {
		outcome = OutcomeBlock
	}

	decision := &ClassificationDecision{Outcome: outcome, EvaluatedAt: start}
	s.finish(ctx, decision, start, "fallback")
	return decision
}

func (s *Service) finish(ctx context.Context, decision *ClassificationDecision, start time.Time, source string) {
	duration := time.Since(start)
	metrics.ClassificationsTotal.WithLabelValues(string(decision.Outcome), source).Inc()
	metrics.ObserveClassificationDuration(duration, string(decision.Outcome))

	if s.recorder != nil {
		s.recorder.Record(ctx, stats.Evaluation{
			DurationMs: float64(duration.Microseconds()) / 1000,
			Outcome:    string(decision.Outcome),
			FromCache:  decision.FromCache,
		})
	}
}

func (s *Service) keyPrefix() string {
	if s.cacheCfg.KeyPrefix != "" {
		return s.cacheCfg.KeyPrefix
	}
	return constants.CacheKeyPrefixDecision
}

func (s *Service) cacheTTL() time.Duration {
	seconds := s.cacheCfg.TTLSeconds
	if seconds <= 0 {
		seconds = constants.DefaultCacheTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

func needsMetadata(req ClassificationRequest) bool {
	return req.Title == "" && req.ChannelName == "" && req.Description == "" && len(req.Tags) == 0
}

func contentFields(req ClassificationRequest) []string {
	return []string{req.Title, req.ChannelName, req.Description, strings.Join(req.Tags, ",")}
}

func fieldValues(req ClassificationRequest, field patterns.TargetField) []string {
	switch field {
	case patterns.TargetFieldTitle:
		return []string{req.Title}
	case patterns.TargetFieldChannel:
		return []string{req.ChannelName}
	case patterns.TargetFieldDescription:
		return []string{req.Description}
	case patterns.TargetFieldTags:
		return req.Tags
	default:
		return nil
	}
}
