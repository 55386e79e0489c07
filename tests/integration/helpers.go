package integration

import (
	"time"

	"screener/internal/logger"
	"screener/internal/patterns"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestPattern(name, pattern string, patternType patterns.PatternType, field patterns.TargetField, priority int) *patterns.Pattern {
	return &patterns.Pattern{
		Name:        name,
		Pattern:     pattern,
		Type:        patternType,
		TargetField: field,
		Priority:    priority,
		IsActive:    true,
	}
}
