package constants

import "time"

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDecision = "decision:"
	CacheKeyPrefixProvider = "provider:"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultCacheTTLSeconds = 3600
	MaxPatternLength       = 500
	MinPatternLength       = 2
)

const (
	FallbackAllow = "allow"
	FallbackBlock = "block"
)

const (
	PatternTypeKeyword  = "keyword"
	PatternTypeWildcard = "wildcard"
	PatternTypeRegex    = "regex"
	PatternTypeFuzzy    = "fuzzy"
	PatternTypeSemantic = "semantic"
)

const (
	TargetFieldTitle       = "title"
	TargetFieldChannel     = "channel"
	TargetFieldDescription = "description"
	TargetFieldTags        = "tags"
)

const (
	OpClassVideoFetch   = "video-fetch"
	OpClassChannelFetch = "channel-fetch"
	OpClassSearch       = "search"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
