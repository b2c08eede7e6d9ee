package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the subset of redis commands the cached store uses.
// Satisfied by *redis.Client; tests substitute a fake.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// tombstone marks a deleted code. A reader that loaded the row just
// before the delete committed cannot re-fill over it.
var tombstone = []byte("tombstone")

// CachedStore layers a redis read-through cache over a Repository.
// Writes are write-through: after the database commit the new value (or
// a tombstone, for deletes) is stored under the code, and read fills use
// SET NX so a fill racing a write can never replace the written value.
// A client that saw a write's success response therefore never observes
// the pre-write state.
type CachedStore struct {
	inner   *Repository
	client  Cache
	ttl     time.Duration
	timeout time.Duration
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner *Repository, client Cache, ttl, timeout time.Duration) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, timeout: timeout}
}

func (s *CachedStore) Create(ctx context.Context, in Fields) (*Embed, error) {
	e, err := s.inner.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	// A reissued code could in principle shadow a stale entry.
	if err := s.writeThrough(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *CachedStore) Get(ctx context.Context, code string) (*Embed, error) {
	if e, ok := s.lookup(ctx, code); ok {
		return e, nil
	}

	e, err := s.inner.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, e)
	return e, nil
}

func (s *CachedStore) Update(ctx context.Context, code, secret string, in Fields) (*Embed, error) {
	e, err := s.inner.Update(ctx, code, secret, in)
	if err != nil {
		return nil, err
	}
	if err := s.writeThrough(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *CachedStore) Delete(ctx context.Context, code, secret string) error {
	if err := s.inner.Delete(ctx, code, secret); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, cacheKey(code), tombstone, s.ttl).Err(); err != nil {
		return fmt.Errorf("invalidating embed cache: %w", err)
	}
	return nil
}

func (s *CachedStore) DeleteExpired(ctx context.Context) (int64, error) {
	// Expired entries age out of the cache on their own TTL.
	return s.inner.DeleteExpired(ctx)
}

func cacheKey(code string) string {
	return "embed:" + code
}

// lookup returns a cached embed. Cache misses, tombstones and cache
// errors all report !ok; a broken cache degrades reads to the database.
func (s *CachedStore) lookup(ctx context.Context, code string) (*Embed, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("embed cache read failed", "code", code, "error", err)
		}
		return nil, false
	}
	if bytes.Equal(data, tombstone) {
		return nil, false
	}

	var e Embed
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("embed cache entry corrupt", "code", code, "error", err)
		return nil, false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(time.Now().UTC()) {
		return nil, false
	}
	return &e, true
}

// fill caches a freshly read embed. The data was loaded before any
// concurrent write's write-through, so SET NX: an existing entry always
// wins over a fill.
func (s *CachedStore) fill(ctx context.Context, e *Embed) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.SetNX(ctx, cacheKey(e.Code), data, s.ttl).Err(); err != nil {
		slog.Warn("embed cache fill failed", "code", e.Code, "error", err)
	}
}

// writeThrough stores the committed value under its code. Unlike fills,
// a failure here is surfaced: returning success while the cache might
// still hold the pre-write value would break read-after-write.
func (s *CachedStore) writeThrough(ctx context.Context, e *Embed) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding embed for cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, cacheKey(e.Code), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("updating embed cache: %w", err)
	}
	return nil
}
