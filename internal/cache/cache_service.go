// Package cache provides the short-lived Redis cache in front of the analytics
// services. Redis is optional: when it is down, reads miss and writes are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-analytics/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes for the analytics caches
const (
	PrefixMultiTimeframe = "ict:mtf:%s"
	PrefixArbitrageScan  = "arb:scan:%s"
	PrefixHeatmap        = "liquidity:heatmap:%s"
	PrefixCandles        = "candles:%s:%s:%d"
)

// RedisStore provides Redis-based caching with graceful degradation.
// After maxFailures consecutive errors it stops calling Redis and reports
// ErrCacheUnavailable until a background ping succeeds.
type RedisStore struct {
	client       *redis.Client
	config       config.RedisConfig
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration
}

// NewRedisStore connects to Redis. A failed initial ping returns the store in
// degraded mode rather than an error.
func NewRedisStore(cfg config.RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rs := newRedisStore(client, cfg, logger)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rs.logger.Warn().Err(err).Str("address", cfg.Address).Msg("Initial Redis connection failed, running degraded")
		return rs, nil
	}

	rs.markHealthy()
	rs.logger.Info().Str("address", cfg.Address).Msg("Redis connected")
	return rs, nil
}

func newRedisStore(client *redis.Client, cfg config.RedisConfig, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:        client,
		config:        cfg,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}
}

// IsHealthy returns whether Redis is currently available.
func (rs *RedisStore) IsHealthy() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.healthy
}

func (rs *RedisStore) markHealthy() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.healthy = true
	rs.failureCount = 0
	rs.lastCheck = time.Now()
}

// recordFailure tracks a Redis operation failure for circuit breaker.
func (rs *RedisStore) recordFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.failureCount++
	if rs.failureCount >= rs.maxFailures {
		if rs.healthy {
			rs.logger.Warn().Int("failures", rs.failureCount).Msg("Redis marked unhealthy")
		}
		rs.healthy = false
		rs.lastCheck = time.Now()
	}
}

// recordSuccess resets the failure counter on successful operation.
func (rs *RedisStore) recordSuccess() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.healthy {
		rs.logger.Info().Msg("Redis recovered")
	}
	rs.healthy = true
	rs.failureCount = 0
	rs.lastCheck = time.Now()
}

// checkHealth pings Redis in the background once checkInterval has passed while unhealthy.
func (rs *RedisStore) checkHealth() {
	rs.mu.Lock()
	shouldCheck := !rs.healthy && time.Since(rs.lastCheck) >= rs.checkInterval
	if shouldCheck {
		rs.lastCheck = time.Now()
	}
	rs.mu.Unlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rs.client.Ping(pingCtx).Err(); err == nil {
			rs.recordSuccess()
		}
	}()
}

// GetJSON retrieves and unmarshals a JSON value. A missing key returns ErrCacheMiss.
func (rs *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	rs.checkHealth()

	if !rs.IsHealthy() {
		return ErrCacheUnavailable
	}

	data, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss // Cache miss, not a failure
		}
		rs.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}
	rs.recordSuccess()

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a JSON value with TTL.
func (rs *RedisStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rs.checkHealth()

	if !rs.IsHealthy() {
		return ErrCacheUnavailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := rs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		rs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	rs.recordSuccess()
	return nil
}

// Ping checks Redis connectivity.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		rs.recordFailure()
		return err
	}
	rs.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	if rs.client != nil {
		return rs.client.Close()
	}
	return nil
}

// Stats returns cache statistics for monitoring.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (rs *RedisStore) GetStats() Stats {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return Stats{
		Healthy:      rs.healthy,
		FailureCount: rs.failureCount,
		Address:      rs.config.Address,
		PoolSize:     rs.config.PoolSize,
	}
}

// MultiTimeframeKey generates the cache key of a multi-timeframe analysis.
func MultiTimeframeKey(symbol string) string {
	return fmt.Sprintf(PrefixMultiTimeframe, symbol)
}

// ArbitrageScanKey generates the cache key of a scan over a symbol set digest.
func ArbitrageScanKey(digest string) string {
	return fmt.Sprintf(PrefixArbitrageScan, digest)
}

// HeatmapKey generates the cache key of a liquidity heatmap.
func HeatmapKey(symbol string) string {
	return fmt.Sprintf(PrefixHeatmap, symbol)
}

// CandlesKey generates the cache key of a candle series.
func CandlesKey(symbol, interval string, limit int) string {
	return fmt.Sprintf(PrefixCandles, symbol, interval, limit)
}
