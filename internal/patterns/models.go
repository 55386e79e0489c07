package patterns

import "time"

type PatternType string

const (
	PatternTypeKeyword  PatternType = "keyword"
	PatternTypeWildcard PatternType = "wildcard"
	PatternTypeRegex    PatternType = "regex"
	PatternTypeFuzzy    PatternType = "fuzzy"
	PatternTypeSemantic PatternType = "semantic"
)

type TargetField string

const (
	TargetFieldTitle       TargetField = "title"
	TargetFieldChannel     TargetField = "channel"
	TargetFieldDescription TargetField = "description"
	TargetFieldTags        TargetField = "tags"
)

// TargetFields lists every field a pattern can target.
var TargetFields = []TargetField{
	TargetFieldTitle,
	TargetFieldChannel,
	TargetFieldDescription,
	TargetFieldTags,
}

type Pattern struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description,omitempty" db:"description"`
	Pattern     string      `json:"pattern" db:"pattern"`
	Type        PatternType `json:"type" db:"type"`
	TargetField TargetField `json:"target_field" db:"target_field"`
	Priority    int         `json:"priority" db:"priority"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	MatchCount  int64       `json:"match_count" db:"match_count"`
	CategoryID  *string     `json:"category_id,omitempty" db:"category_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

type CreatePatternRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	Pattern     string      `json:"pattern" binding:"required"`
	Type        PatternType `json:"type" binding:"required"`
	TargetField TargetField `json:"target_field" binding:"required"`
	Priority    int         `json:"priority"`
	IsActive    *bool       `json:"is_active"`
	CategoryID  *string     `json:"category_id"`
}

type UpdatePatternRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Pattern     *string      `json:"pattern"`
	Type        *PatternType `json:"type"`
	TargetField *TargetField `json:"target_field"`
	Priority    *int         `json:"priority"`
	IsActive    *bool        `json:"is_active"`
	CategoryID  *string      `json:"category_id"`
}

type ListFilter struct {
	Type        *PatternType
	TargetField *TargetField
	IsActive    *bool
	CategoryID  *string
	Limit       int
	Offset      int
}

type AuditLogEntry struct {
	ID           string      `json:"id"`
	PatternID    string      `json:"pattern_id,omitempty"`
	Action       string      `json:"action"`
	OldValue     interface{} `json:"old_value,omitempty"`
	NewValue     interface{} `json:"new_value,omitempty"`
	ChangedBy    string      `json:"changed_by,omitempty"`
	ChangeReason string      `json:"change_reason,omitempty"`
	IPAddress    string      `json:"ip_address,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

const (
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionDelete     = "delete"
	AuditActionActivate   = "activate"
	AuditActionDeactivate = "deactivate"
)
