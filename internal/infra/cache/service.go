// Package cache provides a Redis-backed cache service with TTL,
// prefix-based bulk invalidation, and dogpile-safe get-or-compute.
// Caching is an optimization, never a correctness dependency: when the
// store is unreachable, reads degrade to misses and writes are logged
// and swallowed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Config holds cache service configuration.
type Config struct {
	// Addr is the Redis server address ("host:port").
	Addr string

	// Password for the Redis server, empty for none.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string

	// DefaultTTL applies when a caller passes a zero TTL.
	DefaultTTL time.Duration

	// OpTimeout bounds each individual store operation so a hung store
	// cannot stall a request.
	OpTimeout time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		KeyPrefix:  "lexgate",
		DefaultTTL: 1 * time.Hour,
		OpTimeout:  2 * time.Second,
	}
}

// Service is a shared, concurrency-safe cache. A single mutex inside
// the singleflight group serializes only the in-flight-computation
// bookkeeping; computations themselves run without any lock held.
type Service struct {
	client redis.Cmdable
	cfg    Config
	group  singleflight.Group
	closer func() error
}

// NewService creates a cache service connected to the configured Redis
// server. The connection is established lazily; use HealthCheck to
// verify reachability.
func NewService(cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultConfig().OpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Service{
		client: client,
		cfg:    cfg,
		closer: client.Close,
	}
}

// NewServiceWithClient creates a cache service around an existing
// client. Used by tests to plug in miniredis.
func NewServiceWithClient(client redis.Cmdable, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultConfig().OpTimeout
	}
	return &Service{client: client, cfg: cfg}
}

// Close releases the underlying store connection.
func (s *Service) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// Get reads the entry for key into dest (JSON-decoded). It returns
// false on a miss. Store failures degrade to a miss so the caller falls
// through to recomputation.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.namespaced(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheErrors.WithLabelValues("get").Inc()
			slog.Warn("cache get failed, treating as miss",
				slog.String("key", key),
				slog.Any("error", err))
		}
		cacheMisses.Inc()
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is unusable; drop it and miss.
		cacheErrors.WithLabelValues("decode").Inc()
		slog.Warn("cache entry decode failed, invalidating",
			slog.String("key", key),
			slog.Any("error", err))
		s.Invalidate(context.WithoutCancel(ctx), key)
		cacheMisses.Inc()
		return false
	}

	cacheHits.Inc()
	return true
}

// Set writes value under key with the given TTL (DefaultTTL when zero).
// The entry becomes visible atomically: readers see either nothing or
// the complete value. Store failures are logged and swallowed.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("encode").Inc()
		slog.Warn("cache value encode failed, skipping write",
			slog.String("key", key),
			slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.namespaced(key), raw, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		slog.Warn("cache set failed, continuing without cache",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// Invalidate removes a single entry.
func (s *Service) Invalidate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.namespaced(key)).Err(); err != nil {
		cacheErrors.WithLabelValues("del").Inc()
		slog.Warn("cache invalidate failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// InvalidatePattern removes every entry whose key starts with prefix.
// It returns the number of entries removed. SCAN is used instead of
// KEYS so large keyspaces do not block the store.
func (s *Service) InvalidatePattern(ctx context.Context, prefix string) (int64, error) {
	match := s.namespaced(prefix) + "*"

	var removed int64
	var cursor uint64
	for {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
		keys, next, err := s.client.Scan(opCtx, cursor, match, 100).Result()
		cancel()
		if err != nil {
			return removed, fmt.Errorf("cache scan failed for pattern %q: %w", prefix, err)
		}

		if len(keys) > 0 {
			opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
			n, err := s.client.Del(opCtx, keys...).Result()
			cancel()
			if err != nil {
				return removed, fmt.Errorf("cache delete failed for pattern %q: %w", prefix, err)
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	slog.Info("cache pattern invalidated",
		slog.String("prefix", prefix),
		slog.Int64("removed", removed))
	return removed, nil
}

// Exists reports whether key has a live entry. Store failures report
// false.
func (s *Service) Exists(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.namespaced(key)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// HealthStatus reports cache store reachability.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Keys    int64         `json:"keys"`
	Message string        `json:"message,omitempty"`
}

// HealthCheck pings the store and reports reachability, round-trip
// latency and keyspace size.
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return HealthStatus{
			Healthy: false,
			Latency: time.Since(start),
			Message: err.Error(),
		}
	}

	keys, err := s.client.DBSize(ctx).Result()
	if err != nil {
		keys = -1
	}

	return HealthStatus{
		Healthy: true,
		Latency: time.Since(start),
		Keys:    keys,
	}
}

func (s *Service) namespaced(key string) string {
	if s.cfg.KeyPrefix == "" {
		return key
	}
	return s.cfg.KeyPrefix + ":" + key
}

// GetOrCompute returns the live entry for key, or runs compute exactly
// once per key among concurrent callers and stores the result with ttl.
// Later callers for the same key await the first computation's result
// instead of recomputing (cache stampede protection). The boolean
// reports whether the value came from the cache.
//
// compute runs under the context of the caller that started it; no lock
// is held while it runs. Store failures degrade to computing without
// caching.
func GetOrCompute[T any](ctx context.Context, s *Service, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	result, err, shared := s.group.Do(key, func() (any, error) {
		// Re-check: another caller may have finished the computation and
		// stored it between our miss and acquiring the flight.
		var again T
		if s.Get(ctx, key, &again) {
			return again, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return value, err
		}

		s.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	if shared {
		cacheStampedesPrevented.Inc()
	}

	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("cache computation for key %q returned unexpected type %T", key, result)
	}
	return typed, false, nil
}
