package classification

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"screener/internal/patterns"
)

// matches reports whether one stored pattern matches a field value.
// Keyword and pattern text comparisons are case-insensitive.
func matches(cp patterns.CompiledPattern, value string) bool {
	if value == "" {
		return false
	}

	switch cp.Type {
	case patterns.PatternTypeKeyword:
		return strings.Contains(strings.ToLower(value), strings.ToLower(cp.Pattern.Pattern))
	case patterns.PatternTypeWildcard, patterns.PatternTypeRegex:
		if cp.Regex == nil {
			return false
		}
		return cp.Regex.MatchString(value)
	case patterns.PatternTypeFuzzy:
		return fuzzyMatch(cp.Pattern.Pattern, value)
	case patterns.PatternTypeSemantic:
		return semanticMatch(cp.Pattern.Pattern, value)
	default:
		return false
	}
}

// fuzzyMatch compares the pattern against token windows of the value
// under a bounded edit distance: one edit for short patterns, two for
// longer ones. Bounding the distance keeps short tokens from matching
// everything.
func fuzzyMatch(pattern, value string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	patternTokens := tokenize(pattern)
	if len(patternTokens) == 0 {
		return false
	}

	valueTokens := tokenize(strings.ToLower(value))
	if len(valueTokens) < len(patternTokens) {
		return false
	}

	limit := 2
	if utf8.RuneCountInString(pattern) <= 4 {
		limit = 1
	}

	width := len(patternTokens)
	joined := strings.Join(patternTokens, " ")
	for i := 0; i+width <= len(valueTokens); i++ {
		window := strings.Join(valueTokens[i:i+width], " ")
		if boundedLevenshtein(joined, window, limit) {
			return true
		}
	}

	return false
}

// semanticMatch approximates topical similarity with token-set
// overlap: enough of the pattern's tokens must appear in the value.
// Single-token patterns fall back to substring containment.
func semanticMatch(pattern, value string) bool {
	patternTokens := tokenize(strings.ToLower(pattern))
	if len(patternTokens) == 0 {
		return false
	}

	valueLower := strings.ToLower(value)
	if len(patternTokens) == 1 {
		return strings.Contains(valueLower, patternTokens[0])
	}

	valueSet := make(map[string]struct{})
	for _, token := range tokenize(valueLower) {
		valueSet[token] = struct{}{}
	}

	overlap := 0
	for _, token := range patternTokens {
		if _, ok := valueSet[token]; ok {
			overlap++
		}
	}

	return float64(overlap)/float64(len(patternTokens)) >= 0.6
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// boundedLevenshtein reports whether the edit distance between a and b
// is at most limit, bailing out early once a row exceeds it.
func boundedLevenshtein(a, b string, limit int) bool {
	ra := []rune(a)
	rb := []rune(b)

	if abs(len(ra)-len(rb)) > limit {
		return false
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > limit {
			return false
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)] <= limit
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
