package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a redis client with JSON helpers and simple fixed-window
// rate limiting. All call sites treat a nil *Redis as "caching disabled".
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// Config holds redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// New creates a redis wrapper. It does not dial; use Ping to verify.
func New(cfg Config, logger *slog.Logger) *Redis {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &Redis{
		client: redis.NewClient(opts),
		logger: logger.With("component", "cache"),
	}
}

// Client exposes the underlying redis client.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetJSON loads the value at key into dest. Returns false when the key is
// absent.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores val at key with a TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Allow increments a fixed-window counter at key and reports whether the
// caller is still within limit. Redis trouble fails open.
func (r *Redis) Allow(ctx context.Context, key string, limit int64, window time.Duration) bool {
	res := r.client.Incr(ctx, key)
	if res.Err() != nil {
		r.logger.Warn("rate limit incr failed", "error", res.Err(), "key", key)
		return true
	}
	if res.Val() == 1 {
		r.client.Expire(ctx, key, window)
	}
	return res.Val() <= limit
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
