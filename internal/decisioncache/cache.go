package decisioncache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Decision is a cached classification verdict. EvaluatedAt keeps the
// original evaluation time visible on cache hits.
type Decision struct {
	Outcome          string    `json:"outcome"`
	MatchedPatternID *string   `json:"matched_pattern_id,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// Cache stores classification decisions keyed by item identity and
// pattern-set generation. InvalidateAll advances the cache generation
// instead of walking entries; keys built against the old generation
// simply stop being produced and age out.
type Cache interface {
	Get(ctx context.Context, key string) (*Decision, bool)
	Put(ctx context.Context, key string, decision Decision, ttl time.Duration)
	InvalidateAll(ctx context.Context) error
	Generation(ctx context.Context) uint64
}

// Key derives the cache key for one item under the given pattern-set
// and cache generations. Any change to the item content, the pattern
// set, or an explicit invalidation yields a fresh key.
func Key(prefix, itemID string, contentFields []string, patternGen, cacheGen uint64) string {
	h := sha256.New()
	h.Write([]byte(itemID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(contentFields, "\x00")))
	digest := hex.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s%d:%d:%s", prefix, patternGen, cacheGen, digest)
}
