package patterns

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"screener/internal/constants"
	"screener/pkg/errors"
)

// ValidationResult is the outcome of validating a candidate pattern.
// Invalid patterns carry the rejection reason and are never stored.
type ValidationResult struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

// Lookaround and backtracking-control constructs are rejected up front.
// Go's regexp would refuse them at compile time anyway; rejecting them
// here keeps stored patterns portable across engines and gives the
// caller a clearer error than a compile failure.
var regexDenyList = []string{"(?=", "(?!", "(*"}

// stackedQuantifier flags a quantified group that is itself quantified,
// e.g. (a+)+ or (\d*){2,}. Heuristic, not a completeness proof.
var stackedQuantifier = regexp.MustCompile(`\([^)]*[+*}][^)]*\)[+*{]`)

var wildcardForbidden = "<>{}[]\\"

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a candidate pattern for its declared type and target
// field. It is pure: no I/O, no state.
func (v *Validator) Validate(pattern string, patternType PatternType, targetField TargetField) ValidationResult {
	trimmed := strings.TrimSpace(pattern)

	if trimmed == "" {
		return invalid("pattern must not be empty")
	}
	if utf8.RuneCountInString(pattern) > constants.MaxPatternLength {
		return invalid("pattern exceeds maximum length of 500 characters")
	}

	switch targetField {
	case TargetFieldTitle, TargetFieldChannel, TargetFieldDescription, TargetFieldTags:
	default:
		return invalid("unknown target field: " + string(targetField))
	}

	switch patternType {
	case PatternTypeKeyword, PatternTypeFuzzy, PatternTypeSemantic:
		if utf8.RuneCountInString(trimmed) < constants.MinPatternLength {
			return invalid("pattern must be at least 2 characters")
		}
	case PatternTypeWildcard:
		if strings.ContainsAny(trimmed, wildcardForbidden) {
			return invalid("wildcard pattern must not contain any of " + wildcardForbidden)
		}
	case PatternTypeRegex:
		for _, construct := range regexDenyList {
			if strings.Contains(trimmed, construct) {
				return invalid("regex construct " + construct + " is not supported")
			}
		}
		if stackedQuantifier.MatchString(trimmed) {
			return invalid("nested quantifiers are not allowed")
		}
		if _, err := regexp.Compile(trimmed); err != nil {
			return invalid("invalid regex: " + err.Error())
		}
	default:
		return invalid("unknown pattern type: " + string(patternType))
	}

	return ValidationResult{IsValid: true}
}

// ValidateOrError converts a failed validation into a structured error.
func (v *Validator) ValidateOrError(pattern string, patternType PatternType, targetField TargetField) error {
	result := v.Validate(pattern, patternType, targetField)
	if result.IsValid {
		return nil
	}
	return errors.ErrValidation.WithDetail("message", result.Error)
}

func invalid(reason string) ValidationResult {
	return ValidationResult{IsValid: false, Error: reason}
}
