package decisioncache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"screener/internal/logger"
)

const generationKey = "decision:generation"

// RedisCache is the multi-instance backend. The generation counter
// lives in Redis so every instance observes an InvalidateAll. Redis
// failures degrade to a miss; the caller recomputes and the outage
// never surfaces as a classification error.
type RedisCache struct {
	client *redis.Client
	logger logger.Logger

	// lastKnownGen is served when Redis is unreachable.
	lastKnownGen atomic.Uint64
}

func NewRedisCache(client *redis.Client, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: log,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Decision, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnwCtx(ctx, "Decision cache read failed, recomputing", "error", err)
		return nil, false
	}

	var decision Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		c.logger.WarnwCtx(ctx, "Corrupt decision cache entry", "key", key, "error", err)
		return nil, false
	}

	return &decision, true
}

func (c *RedisCache) Put(ctx context.Context, key string, decision Decision, ttl time.Duration) {
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Decision cache write failed", "error", err)
	}
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return err
	}

	c.lastKnownGen.Store(uint64(gen))
	return nil
}

func (c *RedisCache) Generation(ctx context.Context) uint64 {
	gen, err := c.client.Get(ctx, generationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		return c.lastKnownGen.Load()
	}

	c.lastKnownGen.Store(gen)
	return gen
}
