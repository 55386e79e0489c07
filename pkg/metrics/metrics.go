package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_decisions_total",
			Help: "Total number of classification decisions (count)",
		},
		[]string{"outcome", "source"},
	)

	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classification_duration_ms",
			Help:    "Classification evaluation duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"outcome"},
	)

	PatternEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_evaluations_total",
			Help: "Total number of individual pattern evaluations (count)",
		},
		[]string{"pattern_type", "result"},
	)

	CorruptPatternsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corrupt_patterns_total",
			Help: "Stored patterns skipped because they no longer compile (count)",
		},
		[]string{"pattern_type"},
	)

	ActivePatterns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_patterns",
			Help: "Number of active classification patterns (count)",
		},
	)

	PatternSetGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pattern_set_generation",
			Help: "Current pattern-set generation counter (monotonic)",
		},
	)

	DecisionCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_cache_requests_total",
			Help: "Decision cache lookups by result (count)",
		},
		[]string{"result"},
	)

	DecisionCacheHitRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "decision_cache_hit_rate",
			Help: "Decision cache hit rate (ratio, 0.0 to 1.0)",
		},
	)

	GovernorWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "governor_wait_duration_ms",
			Help:    "Time calls spend waiting in the request governor in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000, 60000},
		},
		[]string{"operation_class"},
	)

	GovernorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_requests_total",
			Help: "Requests admitted through the governor (count)",
		},
		[]string{"operation_class", "status"},
	)

	GovernorQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_queue_depth",
			Help: "Pending calls queued per operation class (count)",
		},
		[]string{"operation_class"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Requests to the video-metadata provider (count)",
		},
		[]string{"operation_class", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_ms",
			Help:    "Video-metadata provider request duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"operation_class"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against the admin rate limit (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"operation"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Times the configured fallback verdict was used (count)",
		},
		[]string{"policy", "reason"},
	)
)

func RegisterClassificationMetrics() {
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(PatternEvaluationsTotal)
	prometheus.MustRegister(CorruptPatternsTotal)
	prometheus.MustRegister(ActivePatterns)
	prometheus.MustRegister(PatternSetGeneration)
	prometheus.MustRegister(DecisionCacheRequestsTotal)
	prometheus.MustRegister(DecisionCacheHitRate)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterGovernorMetrics() {
	prometheus.MustRegister(GovernorWaitDuration)
	prometheus.MustRegister(GovernorRequestsTotal)
	prometheus.MustRegister(GovernorQueueDepth)
}

func RegisterProviderMetrics() {
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveClassificationDuration(duration time.Duration, outcome string) {
	ClassificationDuration.WithLabelValues(outcome).Observe(float64(duration.Microseconds()) / 1000.0)
}

func ObserveGovernorWait(operationClass string, duration time.Duration) {
	GovernorWaitDuration.WithLabelValues(operationClass).Observe(float64(duration.Milliseconds()))
}

func ObserveProviderDuration(operationClass string, duration time.Duration) {
	ProviderRequestDuration.WithLabelValues(operationClass).Observe(float64(duration.Milliseconds()))
}

func SetActivePatterns(count int) {
	ActivePatterns.Set(float64(count))
}

func SetPatternSetGeneration(gen uint64) {
	PatternSetGeneration.Set(float64(gen))
}

func SetDecisionCacheHitRate(rate float64) {
	DecisionCacheHitRate.Set(rate)
}
