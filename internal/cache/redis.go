package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-movie-backend/internal/config"
)

// Redis implements Cache on a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects a Redis-backed cache using the application config.
func NewRedis(cfg config.RedisConfig) *Redis {
	return &Redis{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})}
}

// NewRedisClient wraps an existing client (tests use miniredis here).
func NewRedisClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get returns the value for key, or (nil, nil) when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// Set stores val under key for ttl (0 means no expiry).
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, val, ttl).Err()
}

// Del removes the given keys. Missing keys are not an error.
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

// Ping checks connectivity; used at startup and by health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	if err := r.rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close")
		return err
	}
	return nil
}
