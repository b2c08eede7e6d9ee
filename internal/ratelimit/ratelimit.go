// Package ratelimit provides multi-bucket, per-client admission control
// backed by a shared atomically-incrementing counter store, so the
// decision stays correct across processes and instances.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Bucket names, one per gated route plus the global gate every request
// passes first.
const (
	BucketGlobal   = "global"
	BucketGenerate = "generate"
	BucketCreate   = "create"
	BucketEdit     = "edit"
	BucketDelete   = "delete"
)

// Counter is an atomic increment-with-expiry counter. The first
// increment of a key starts its window; the count and the window's
// reset time come back from a single atomic operation, so two callers
// racing at the limit boundary cannot both observe the same count.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Rule is a bucket's static policy.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result is one bucket's admission decision.
type Result struct {
	Bucket     string
	Allowed    bool
	Limit      int
	Count      int64
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter answers admit/reject for a (bucket, client) pair against the
// shared counter store.
type Limiter struct {
	counter Counter
	rules   map[string]Rule
	now     func() time.Time
}

func NewLimiter(counter Counter, rules map[string]Rule) *Limiter {
	return &Limiter{counter: counter, rules: rules, now: time.Now}
}

// Check atomically counts the request against the named bucket and
// decides admission. An unknown bucket or a counter-store failure is
// returned as an error; callers must treat errors as rejection
// (fail-closed), never as admission.
func (l *Limiter) Check(ctx context.Context, bucket, clientID string) (Result, error) {
	rule, ok := l.rules[bucket]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit bucket %q", bucket)
	}

	count, resetAt, err := l.counter.Incr(ctx, Key(clientID, bucket), rule.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit counter for bucket %q: %w", bucket, err)
	}

	res := Result{
		Bucket:  bucket,
		Allowed: count <= int64(rule.Limit),
		Limit:   rule.Limit,
		Count:   count,
		ResetAt: resetAt,
	}
	if remaining := int64(rule.Limit) - count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	if !res.Allowed {
		retry := resetAt.Sub(l.now())
		if retry < 0 {
			retry = 0
		}
		res.RetryAfter = retry
	}
	return res, nil
}

// Key derives the counter key for a client and bucket. The client
// identifier is hashed so the counter store never holds raw addresses.
func Key(clientID, bucket string) string {
	sum := sha256.Sum256([]byte(clientID + ":" + bucket))
	return "ratelimit:" + bucket + ":" + hex.EncodeToString(sum[:])
}
