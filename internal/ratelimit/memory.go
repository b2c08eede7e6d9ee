package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultMaxKeys = 100_000

// MemoryCounter is an in-process Counter for tests and single-instance
// deployments. Counters expire with their window; a capacity cap plus
// opportunistic GC keeps the map bounded.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count   int64
	resetAt time.Time
}

type MemoryCounterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryCounter(cfg MemoryCounterConfig) *MemoryCounter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	return &MemoryCounter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if ok && !now.Before(w.resetAt) {
		delete(c.windows, key)
		ok = false
	}
	if !ok {
		if len(c.windows) >= c.maxKeys {
			c.gc(now)
		}
		if len(c.windows) >= c.maxKeys {
			return 0, time.Time{}, errors.New("rate limit counter capacity exceeded")
		}
		w = &window{resetAt: now.Add(windowDur)}
		c.windows[key] = w
	}

	w.count++
	return w.count, w.resetAt, nil
}

func (c *MemoryCounter) gc(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}
