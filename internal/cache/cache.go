// Package cache stores completed results in Redis so identical requests from
// the same tenant are answered without another upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/metrics"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
)

const keyPrefix = "realty:"

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Cache is a Redis-backed result cache. A nil *Cache is valid and never hits.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to the Redis server at url (redis://[user:pass@]host:port/db).
// An empty url returns a nil Cache, which disables caching.
func New(url string, ttl time.Duration) (*Cache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return NewWithClient(redis.NewClient(opts), ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for one request. The model is resolved against
// provider.DefaultModels so that an explicit default and an empty model share
// entries. The credential never contributes to the key.
func Key(kind, tenantID string, cfg model.ProviderConfig, req any) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", eris.Wrap(err, "cache: encode request")
	}
	h := sha256.New()
	for _, part := range []string{tenantID, string(cfg.Provider), provider.ModelFor(cfg), cfg.Endpoint} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return keyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get loads the value stored at key into dst and reports whether it was
// found. Redis failures are logged and reported as misses.
func (c *Cache) Get(ctx context.Context, kind, key string, dst any) bool {
	if c == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
		zap.L().Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
		zap.L().Warn("cache: discarding undecodable entry", zap.String("key", key), zap.Error(err))
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return true
}

// Set stores v at key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	return c.SetTTL(ctx, key, v, 0)
}

// SetTTL stores v at key for ttl, or for the configured TTL when ttl is not
// positive.
func (c *Cache) SetTTL(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "cache: encode value")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: set")
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return eris.Wrap(c.rdb.Ping(ctx).Err(), "cache: ping")
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
