package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss is returned when a key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when Redis is not healthy
	ErrCacheUnavailable = errors.New("cache unavailable - Redis is not healthy")
)

// Store is the JSON key/value cache used by the analytics services.
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// NopStore never holds anything; every lookup misses. Used when Redis is disabled.
type NopStore struct{}

func (NopStore) GetJSON(context.Context, string, interface{}) error { return ErrCacheMiss }

func (NopStore) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

// HitRecorder receives read-through outcomes; *metrics.Registry satisfies it.
type HitRecorder interface {
	CacheResult(family string, hit bool)
}

// Loader computes a value on a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Through returns the cached value under key or computes it with load and stores it
// for ttl. Cache failures never fail the call: an unreadable entry is treated as a
// miss and a failed write is only logged. Load errors are returned and not cached.
func Through[T any](ctx context.Context, store Store, key string, ttl time.Duration, logger zerolog.Logger, rec HitRecorder, load Loader[T]) (T, error) {
	family := keyFamily(key)

	var cached T
	err := store.GetJSON(ctx, key, &cached)
	if err == nil {
		if rec != nil {
			rec.CacheResult(family, true)
		}
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Debug().Err(err).Str("key", key).Msg("Cache read failed, computing fresh value")
	}
	if rec != nil {
		rec.CacheResult(family, false)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := store.SetJSON(ctx, key, value, ttl); err != nil {
		logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return value, nil
}

// keyFamily is the prefix before the first ':' ("arb:scan:x" -> "arb").
func keyFamily(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
