// Package cache defines the key-value cache port shared by the TMDB proxy
// and provides its Redis implementation. The interface is intentionally
// small: get, set-with-TTL, best-effort delete.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with per-key TTLs.
//
// Get returns (nil, nil) on a miss so callers can distinguish "absent" from
// a transport failure. Del is best-effort: the TMDB proxy re-validates every
// read, so a lost eviction only delays self-repair to the next call.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
