package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ogembed/api/internal/handler"
	"github.com/ogembed/api/internal/ratelimit"
)

// rateLimitGate applies the two-bucket admission policy: every request
// must pass the global bucket and its route bucket; if either rejects,
// the request is rejected with the larger retry-after. A counter-store
// failure rejects too (fail-closed) as a 503.
type rateLimitGate struct {
	limiter *ratelimit.Limiter
}

func newRateLimitGate(limiter *ratelimit.Limiter) *rateLimitGate {
	return &rateLimitGate{limiter: limiter}
}

func (g *rateLimitGate) limit(bucket string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientID := clientIP(r)

			global, err := g.limiter.Check(r.Context(), ratelimit.BucketGlobal, clientID)
			if err != nil {
				handler.WriteError(w, http.StatusServiceUnavailable, handler.ErrCodeDependency, "rate limiter is unavailable")
				return
			}
			route, err := g.limiter.Check(r.Context(), bucket, clientID)
			if err != nil {
				handler.WriteError(w, http.StatusServiceUnavailable, handler.ErrCodeDependency, "rate limiter is unavailable")
				return
			}

			if !global.Allowed || !route.Allowed {
				rejected := pickRejected(global, route)
				writeRateLimitHeaders(w, rejected)
				retry := int64(math.Ceil(rejected.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				handler.WriteError(w, http.StatusTooManyRequests, handler.ErrCodeRateLimited, "you are being rate limited")
				return
			}

			writeRateLimitHeaders(w, route)
			next.ServeHTTP(w, r)
		})
	}
}

// pickRejected chooses which rejection the client hears about: the one
// whose window takes longest to reopen.
func pickRejected(global, route ratelimit.Result) ratelimit.Result {
	switch {
	case !global.Allowed && !route.Allowed:
		if global.RetryAfter >= route.RetryAfter {
			return global
		}
		return route
	case !global.Allowed:
		return global
	default:
		return route
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	resetAfter := int64(math.Ceil(time.Until(res.ResetAt).Seconds()))
	if resetAfter < 0 {
		resetAfter = 0
	}
	h.Set("X-RateLimit-Reset-After", strconv.FormatInt(resetAfter, 10))
	h.Set("X-RateLimit-Bucket", res.Bucket)
}

// clientIP returns the request's client identifier. RealIP middleware
// has already folded proxy headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
