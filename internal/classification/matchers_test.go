package classification

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/patterns"
)

func compiled(t *testing.T, patternType patterns.PatternType, text string) patterns.CompiledPattern {
	t.Helper()

	cp := patterns.CompiledPattern{
		Pattern: patterns.Pattern{Pattern: text, Type: patternType},
	}

	switch patternType {
	case patterns.PatternTypeRegex:
		re, err := regexp.Compile("(?i)" + text)
		require.NoError(t, err)
		cp.Regex = re
	case patterns.PatternTypeWildcard:
		re, err := regexp.Compile("(?i)" + patterns.WildcardToRegex(text))
		require.NoError(t, err)
		cp.Regex = re
	}

	return cp
}

func TestMatches_Keyword(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"exact", "spam", "spam", true},
		{"substring", "spam", "this is SPAM content", true},
		{"case insensitive", "SpAm", "obvious spam here", true},
		{"no match", "spam", "legitimate video", false},
		{"empty value", "spam", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := compiled(t, patterns.PatternTypeKeyword, tt.pattern)
			assert.Equal(t, tt.want, matches(cp, tt.value))
		})
	}
}

func TestMatches_Wildcard(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"star matches run", "sp*m", "spam", true},
		{"star matches long run", "sp*m", "spaaaam", true},
		{"question single char", "sp?m", "spam", true},
		{"question not two chars", "sp?m", "spaam", false},
		{"anchored to whole value", "sp*m", "spam video", false},
		{"case insensitive", "SP*M", "spam", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := compiled(t, patterns.PatternTypeWildcard, tt.pattern)
			assert.Equal(t, tt.want, matches(cp, tt.value))
		})
	}
}

func TestMatches_Regex(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"alternation", "clickbait|drama", "pure DRAMA channel", true},
		{"anchored", "^breaking", "breaking news today", true},
		{"anchored miss", "^breaking", "more breaking news", false},
		{"no match", "crypto", "cooking tutorial", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := compiled(t, patterns.PatternTypeRegex, tt.pattern)
			assert.Equal(t, tt.want, matches(cp, tt.value))
		})
	}
}

func TestMatches_Fuzzy(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"exact token", "giveaway", "huge giveaway today", true},
		{"one edit", "giveaway", "huge givaway today", true},
		{"two edits on long pattern", "giveaway", "huge givawy today", true},
		{"too many edits", "giveaway", "huge gvwy today", false},
		{"short pattern one edit", "spam", "spim content", true},
		{"short pattern two edits rejected", "spam", "spin content", false},
		{"multi word pattern", "free money", "totally free money now", true},
		{"no match", "giveaway", "cooking tutorial", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := compiled(t, patterns.PatternTypeFuzzy, tt.pattern)
			assert.Equal(t, tt.want, matches(cp, tt.value))
		})
	}
}

func TestMatches_Semantic(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"single token substring", "crypto", "cryptocurrency deep dive", true},
		{"most tokens present", "get rich quick", "how to get rich really quick", true},
		{"insufficient overlap", "get rich quick", "rich chocolate cake", false},
		{"no overlap", "stock tips", "gardening basics", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := compiled(t, patterns.PatternTypeSemantic, tt.pattern)
			assert.Equal(t, tt.want, matches(cp, tt.value))
		})
	}
}

func TestBoundedLevenshtein(t *testing.T) {
	assert.True(t, boundedLevenshtein("spam", "spam", 1))
	assert.True(t, boundedLevenshtein("spam", "spim", 1))
	assert.False(t, boundedLevenshtein("spam", "spin", 1))
	assert.True(t, boundedLevenshtein("spam", "spin", 2))
	assert.False(t, boundedLevenshtein("ab", "abcdef", 2))
}
