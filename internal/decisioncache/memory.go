package decisioncache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	decision  Decision
	expiresAt time.Time
}

// MemoryCache is the single-instance backend. Expired entries are
// dropped lazily on read; a janitor sweep keeps the map from growing
// unbounded between reads.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	generation atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.sweep(sweepInterval)
	}

	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*Decision, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	decision := entry.decision
	return &decision, true
}

func (c *MemoryCache) Put(ctx context.Context, key string, decision Decision, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{
		decision:  decision,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	c.generation.Add(1)
	return nil
}

func (c *MemoryCache) Generation(ctx context.Context) uint64 {
	return c.generation.Load()
}

func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
