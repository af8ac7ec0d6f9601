// Package token mints and resolves opaque bearer tokens backed by Redis.
//
// A token is an opaque string; the server-side record pins the user id and
// the role/permission snapshot taken at issuance. Authorization checks run
// against that snapshot (a capability set), not against runtime role lookups,
// so a request's privileges are fixed for the token's lifetime.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a presented token does not resolve to a live
// record (unknown, revoked, or expired).
var ErrNotFound = errors.New("token not found")

// Capabilities is the enumerated permission set attached to a token at
// issuance.
type Capabilities []string

// Has reports whether the capability set contains name.
func (c Capabilities) Has(name string) bool {
	for _, v := range c {
		if v == name {
			return true
		}
	}
	return false
}

// Record is the server-side state for one bearer token.
type Record struct {
	UserID      string       `json:"user_id"`
	Roles       []string     `json:"roles"`
	Permissions Capabilities `json:"permissions"`
	IssuedAt    time.Time    `json:"issued_at"`
}

// HasRole reports whether the token was issued with the named role.
func (r *Record) HasRole(name string) bool {
	for _, v := range r.Roles {
		if v == name {
			return true
		}
	}
	return false
}

// Store mints, resolves, and revokes tokens. Tokens are stored under the
// SHA-256 of the plaintext so a Redis dump does not yield usable credentials;
// a per-user index set supports revoke-all.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a token store writing to rdb with the given lifetime.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func tokenKey(hash string) string { return "token:" + hash }
func userKey(userID string) string { return "user_tokens:" + userID }

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Mint issues a new opaque token for the record and stores it with the
// configured TTL. The returned string is the only copy of the plaintext.
func (s *Store) Mint(ctx context.Context, rec Record) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	plain := hex.EncodeToString(raw)
	hash := hashToken(plain)

	rec.IssuedAt = time.Now().UTC()
	body, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, tokenKey(hash), body, s.ttl)
	pipe.SAdd(ctx, userKey(rec.UserID), hash)
	pipe.Expire(ctx, userKey(rec.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return plain, nil
}

// Lookup resolves a presented bearer token to its record, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, plain string) (*Record, error) {
	body, err := s.rdb.Get(ctx, tokenKey(hashToken(plain))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Revoke invalidates a single token. Revoking an unknown token is a no-op.
func (s *Store) Revoke(ctx context.Context, plain string) error {
	hash := hashToken(plain)
	rec, err := s.Lookup(ctx, plain)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, tokenKey(hash))
	pipe.SRem(ctx, userKey(rec.UserID), hash)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAll invalidates every live token for a user (used after password
// reset so stale sessions cannot outlive the credential change).
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	hashes, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}
	keys = append(keys, userKey(userID))
	return s.rdb.Del(ctx, keys...).Err()
}
