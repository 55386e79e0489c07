package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Keyword(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		pattern string
		valid   bool
	}{
		{"simple keyword", "spam", true},
		{"two characters", "ab", true},
		{"single character", "a", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"trims before length check", " a ", false},
		{"max length", strings.Repeat("x", 500), true},
		{"over max length", strings.Repeat("x", 501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.pattern, PatternTypeKeyword, TargetFieldTitle)
			assert.Equal(t, tt.valid, result.IsValid)
			if !tt.valid {
				assert.NotEmpty(t, result.Error)
			}
		})
	}
}

func TestValidator_Regex(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		pattern string
		valid   bool
	}{
		{"simple regex", `clickbait|drama`, true},
		{"anchored", `^breaking.*news$`, true},
		{"unbalanced paren", `(abc`, false},
		{"lookahead", `foo(?=bar)`, false},
		{"negative lookahead", `foo(?!bar)`, false},
		{"backtracking verb", `(*FAIL)`, false},
		{"stacked quantifier", `(a+)+`, false},
		{"stacked star", `(\d*)*`, false},
		{"quantified alternation is fine", `(foo|bar)+`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.pattern, PatternTypeRegex, TargetFieldDescription)
			assert.Equal(t, tt.valid, result.IsValid, result.Error)
		})
	}
}

func TestValidator_Wildcard(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		pattern string
		valid   bool
	}{
		{"star glob", "sp*m", true},
		{"question mark", "re?ct", true},
		{"plain text", "react tutorial", true},
		{"angle brackets", "<script>", false},
		{"braces", "a{b}", false},
		{"square brackets", "a[b]", false},
		{"backslash", `a\b`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.pattern, PatternTypeWildcard, TargetFieldChannel)
			assert.Equal(t, tt.valid, result.IsValid, result.Error)
		})
	}
}

func TestValidator_UnknownTypeAndField(t *testing.T) {
	v := NewValidator()

	result := v.Validate("spam", PatternType("prefix"), TargetFieldTitle)
	assert.False(t, result.IsValid)

	result = v.Validate("spam", PatternTypeKeyword, TargetField("thumbnail"))
	assert.False(t, result.IsValid)
}

func TestValidator_ValidateOrError(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateOrError("spam", PatternTypeKeyword, TargetFieldTitle))
	assert.Error(t, v.ValidateOrError("", PatternTypeKeyword, TargetFieldTitle))
}
