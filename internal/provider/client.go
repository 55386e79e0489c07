package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"screener/internal/config"
	"screener/internal/constants"
	"screener/internal/governor"
	"screener/internal/logger"
	"screener/pkg/circuitbreaker"
	pkgerrors "screener/pkg/errors"
	"screener/pkg/metrics"
	"screener/pkg/retry"
)

// Client fetches video metadata from the upstream API. Every call is
// paced by the governor under its operation class, guarded by a
// circuit breaker, retried on transient failures, and cached in Redis.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	governor *governor.Governor
	breaker  *circuitbreaker.Wrapper
	policy   retry.Policy

	redis    *redis.Client
	cacheTTL time.Duration

	logger logger.Logger
}

func NewClient(cfg config.ProviderConfig, gov *governor.Governor, breakerCfg circuitbreaker.Config, rdb *redis.Client, log logger.Logger) *Client {
	timeout := cfg.TimeoutSeconds * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Duration(constants.DefaultCacheTTLSeconds) * time.Second
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
		MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		governor:   gov,
		breaker:    circuitbreaker.NewWrapper(breakerCfg),
		policy:     policy,
		redis:      rdb,
		cacheTTL:   cacheTTL,
		logger:     log,
	}
}

func (c *Client) GetVideo(ctx context.Context, videoID string) (*VideoMetadata, error) {
	var result VideoMetadata
	path := "/videos/" + url.PathEscape(videoID)
	err := c.fetch(ctx, constants.OpClassVideoFetch, path, constants.CacheKeyPrefixProvider+"video:"+videoID, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*ChannelMetadata, error) {
	var result ChannelMetadata
	path := "/channels/" + url.PathEscape(channelID)
	err := c.fetch(ctx, constants.OpClassChannelFetch, path, constants.CacheKeyPrefixProvider+"channel:"+channelID, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 25
	}

	var result SearchResult
	path := fmt.Sprintf("/search?q=%s&limit=%d", url.QueryEscape(query), limit)
	err := c.fetch(ctx, constants.OpClassSearch, path, "", &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// fetch wires the call through cache, governor, breaker and retries.
// cacheKey may be empty to skip caching (search results are too
// volatile to be worth it).
func (c *Client) fetch(ctx context.Context, opClass, path, cacheKey string, out interface{}) error {
	if cacheKey != "" && c.cacheGet(ctx, cacheKey, out) {
		return nil
	}

	err := c.governor.Execute(ctx, opClass, func(ctx context.Context) error {
		return c.callWithResilience(ctx, opClass, path, out)
	})
	if err != nil {
		return err
	}

	if cacheKey != "" {
		c.cachePut(ctx, cacheKey, out)
	}

	return nil
}

func (c *Client) callWithResilience(ctx context.Context, opClass, path string, out interface{}) error {
	return retry.RetryWithCallback(ctx, c.policy, func() error {
		start := time.Now()

		_, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return nil, c.doRequest(ctx, path, out)
		})
		c.breaker.RecordRequest(err == nil)

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.ProviderRequestsTotal.WithLabelValues(opClass, outcome).Inc()
		metrics.ObserveProviderDuration(opClass, time.Since(start))

		if err != nil && c.breaker.IsOpen() {
			// An open breaker will not recover within one retry budget.
			return retry.NewFatalError(err)
		}

		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(opClass).Inc()
		c.logger.WarnwCtx(ctx, "Retrying provider call",
			"operation_class", opClass, "attempt", attempt, "next_delay", nextDelay, "error", err)
	})
}

func (c *Client) doRequest(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax:
	case resp.StatusCode == http.StatusNotFound:
		return retry.NewFatalError(pkgerrors.ErrNotFound.WithDetail("path", path))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	default:
		return retry.NewFatalError(fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

func (c *Client) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.WarnwCtx(ctx, "Corrupt provider cache entry", "key", key, "error", err)
		return false
	}

	return true
}

func (c *Client) cachePut(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Provider cache write failed", "key", key, "error", err)
	}
}
