package classification

import "time"

type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeBlock Outcome = "block"
)

type ClassificationRequest struct {
	VideoID     string   `json:"video_id" binding:"required"`
	Title       string   `json:"title"`
	ChannelName string   `json:"channel_name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type ClassificationDecision struct {
	Outcome          Outcome   `json:"outcome"`
	MatchedPatternID *string   `json:"matched_pattern_id,omitempty"`
	FromCache        bool      `json:"from_cache"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}
