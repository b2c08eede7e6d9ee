package embed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ogembed/api/internal/code"
	"github.com/ogembed/api/internal/testutil"
	"github.com/redis/go-redis/v9"
)

// fakeCache is an in-process Cache with injectable failures.
type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = append([]byte(nil), value.([]byte)...)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = append([]byte(nil), value.([]byte)...)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCache) entry(t *testing.T, code string) *Embed {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[cacheKey(code)]
	if !ok {
		t.Fatalf("no cache entry for %q", code)
	}
	var e Embed
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("cache entry for %q corrupt: %v", code, err)
	}
	return &e
}

func testCachedStore(t *testing.T, cache Cache) *CachedStore {
	t.Helper()
	db := testutil.TestDB(t)
	gen, err := code.NewGenerator("23456789abcdefghjkmnpqrstuvwxyz", 8)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return NewCachedStore(NewRepository(db, gen, 0), cache, 5*time.Minute, time.Second)
}

func TestCachedStore_WriteThroughOnUpdate(t *testing.T) {
	cache := newFakeCache()
	s := testCachedStore(t, cache)
	ctx := context.Background()

	created, err := s.Create(ctx, Fields{Title: str("v1")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Update(ctx, created.Code, created.OwnerSecret, Fields{Title: str("v2")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The committed value is cached before Update returns.
	cached := cache.entry(t, created.Code)
	if cached.Title == nil || *cached.Title != "v2" {
		t.Fatalf("expected v2 in cache after update, got %v", cached.Title)
	}

	got, err := s.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title == nil || *got.Title != "v2" {
		t.Fatalf("read after update returned %v", got.Title)
	}
}

func TestCachedStore_StaleFillCannotShadowWrite(t *testing.T) {
	cache := newFakeCache()
	s := testCachedStore(t, cache)
	ctx := context.Background()

	created, err := s.Create(ctx, Fields{Title: str("v1")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A reader loads v1 from the database, then the write lands.
	stale, err := s.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Update(ctx, created.Code, created.OwnerSecret, Fields{Title: str("v2")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The reader's late fill must not replace the written value.
	s.fill(ctx, stale)

	got, err := s.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get after stale fill: %v", err)
	}
	if got.Title == nil || *got.Title != "v2" {
		t.Fatalf("stale fill shadowed the write: got %v", got.Title)
	}
}

func TestCachedStore_DeleteTombstonesEntry(t *testing.T) {
	cache := newFakeCache()
	s := testCachedStore(t, cache)
	ctx := context.Background()

	created, err := s.Create(ctx, Fields{Title: str("doomed")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stale, err := s.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := s.Delete(ctx, created.Code, created.OwnerSecret); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// A reader that loaded the row before the delete cannot resurrect it.
	s.fill(ctx, stale)

	if _, err := s.Get(ctx, created.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedStore_ServesCachedReads(t *testing.T) {
	cache := newFakeCache()
	s := testCachedStore(t, cache)

	// An entry only the cache knows about proves reads are served from it.
	ghost := &Embed{Code: "ghost123", Title: str("from cache")}
	data, err := json.Marshal(ghost)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	cache.mu.Lock()
	cache.data[cacheKey(ghost.Code)] = data
	cache.mu.Unlock()

	got, err := s.Get(context.Background(), ghost.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title == nil || *got.Title != "from cache" {
		t.Fatalf("expected cached value, got %v", got.Title)
	}
}

func TestCachedStore_BrokenCacheDegradesReads(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	s := testCachedStore(t, cache)
	ctx := context.Background()

	// Creating fails loudly: success with a possibly stale cache entry
	// would break read-after-write.
	if _, err := s.Create(ctx, Fields{Title: str("v1")}); err == nil {
		t.Fatal("expected create to surface the cache failure")
	}

	// Reads still work: the row from the failed create is in the
	// database, and lookup errors fall through to it.
	cache.mu.Lock()
	cache.setErr = nil
	cache.mu.Unlock()
	created, err := s.Create(ctx, Fields{Title: str("v1")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get with broken cache reads: %v", err)
	}
	if got.Title == nil || *got.Title != "v1" {
		t.Fatalf("expected database value, got %v", got.Title)
	}
}

func TestCachedStore_UpdateCacheFailureSurfaces(t *testing.T) {
	cache := newFakeCache()
	s := testCachedStore(t, cache)
	ctx := context.Background()

	created, err := s.Create(ctx, Fields{Title: str("v1")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cache.mu.Lock()
	cache.setErr = errors.New("connection refused")
	cache.mu.Unlock()

	if _, err := s.Update(ctx, created.Code, created.OwnerSecret, Fields{Title: str("v2")}); err == nil {
		t.Fatal("expected update to surface the cache failure")
	}
}
