package stats

import "time"

// Evaluation is one finished classification, as observed by the
// collector.
type Evaluation struct {
	DurationMs float64
	Outcome    string
	FromCache  bool
}

// DailySample is the running aggregate for one calendar day.
type DailySample struct {
	Date            time.Time `json:"date"`
	TotalClassified int64     `json:"total_classified"`
	Blocked         int64     `json:"blocked"`
	Allowed         int64     `json:"allowed"`
	CacheHits       int64     `json:"cache_hits"`
	CacheMisses     int64     `json:"cache_misses"`
	AvgProcessingMs float64   `json:"avg_processing_ms"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// TrendMetric compares one measure between the current window and the
// preceding one.
type TrendMetric struct {
	Current       float64        `json:"current"`
	Previous      float64        `json:"previous"`
	PercentChange float64        `json:"percent_change"`
	Direction     TrendDirection `json:"direction"`
}

// TrendReport is nil-valued when the preceding window holds no data;
// a percent change against nothing is meaningless.
type TrendReport struct {
	WindowDays      int         `json:"window_days"`
	AvgProcessingMs TrendMetric `json:"avg_processing_ms"`
	BlockedCount    TrendMetric `json:"blocked_count"`
}
