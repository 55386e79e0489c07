package patterns

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"screener/internal/logger"
	"screener/pkg/metrics"
)

// CompiledPattern pairs a stored pattern with its compiled regex when
// the type is regex. Corrupt regexes compile to nil and are skipped at
// evaluation time.
type CompiledPattern struct {
	Pattern
	Regex *regexp.Regexp
}

// Snapshot is an immutable view of the active pattern set at one
// generation. Ordered holds every compiled pattern by priority DESC,
// id ASC across all target fields; ByField groups the same patterns
// for per-field lookups. Callers never mutate it.
type Snapshot struct {
	Generation uint64
	Ordered    []CompiledPattern
	ByField    map[TargetField][]CompiledPattern
	Count      int
}

// Store serves the active pattern snapshot used on the classify hot
// path. The snapshot is reloaded when the generation moves past the
// one it was built for; concurrent cold reads collapse into a single
// repository query.
type Store struct {
	repo   Repository
	logger logger.Logger

	generation atomic.Uint64

	mu       sync.RWMutex
	snapshot *Snapshot

	group singleflight.Group
}

func NewStore(repo Repository, log logger.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: log,
	}
}

// Generation returns the current pattern-set generation. It moves
// forward on every mutation.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Bump advances the generation, marking every cached snapshot and
// decision stale.
func (s *Store) Bump() uint64 {
	gen := s.generation.Add(1)
	metrics.SetPatternSetGeneration(gen)
	return gen
}

// Active returns the snapshot for the current generation, loading it
// from the repository if the cached one is stale.
func (s *Store) Active(ctx context.Context) (*Snapshot, error) {
	gen := s.generation.Load()

	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	if snapshot != nil && snapshot.Generation == gen {
		return snapshot, nil
	}

	result, err, _ := s.group.Do(fmt.Sprintf("load-%d", gen), func() (interface{}, error) {
		return s.load(ctx, gen)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Snapshot), nil
}

func (s *Store) load(ctx context.Context, gen uint64) (*Snapshot, error) {
	grouped, err := s.repo.ListActiveByField(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active patterns: %w", err)
	}

	byField := make(map[TargetField][]CompiledPattern, len(grouped))
	count := 0
	for field, list := range grouped {
		compiled := make([]CompiledPattern, 0, len(list))
		for _, p := range list {
			cp := CompiledPattern{Pattern: p}
			switch p.Type {
			case PatternTypeRegex:
				re, err := regexp.Compile("(?i)" + p.Pattern)
				if err != nil {
					// A stored regex can go corrupt only through out-of-band
					// edits. Skip it, keep classifying with the rest.
					metrics.CorruptPatternsTotal.WithLabelValues(string(p.Type)).Inc()
					s.logger.WarnwCtx(ctx, "Skipping corrupt regex pattern",
						"pattern_id", p.ID, "error", err)
					continue
				}
				cp.Regex = re
			case PatternTypeWildcard:
				re, err := regexp.Compile("(?i)" + WildcardToRegex(p.Pattern))
				if err != nil {
					metrics.CorruptPatternsTotal.WithLabelValues(string(p.Type)).Inc()
					s.logger.WarnwCtx(ctx, "Skipping corrupt wildcard pattern",
						"pattern_id", p.ID, "error", err)
					continue
				}
				cp.Regex = re
			}
			compiled = append(compiled, cp)
			count++
		}
		byField[field] = compiled
	}

	ordered := make([]CompiledPattern, 0, count)
	for _, compiled := range byField {
		ordered = append(ordered, compiled...)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	snapshot := &Snapshot{
		Generation: gen,
		Ordered:    ordered,
		ByField:    byField,
		Count:      count,
	}

	s.mu.Lock()
	if s.snapshot == nil || s.snapshot.Generation <= gen {
		s.snapshot = snapshot
	}
	s.mu.Unlock()

	metrics.SetActivePatterns(count)
	return snapshot, nil
}
