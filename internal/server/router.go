package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ogembed/api/internal/handler"
	"github.com/ogembed/api/internal/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter creates the HTTP router with all routes registered.
// limiter may be nil to disable rate limiting (tests, explicit opt-out).
func NewRouter(h *handler.Handler, limiter *ratelimit.Limiter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "Accept"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-RateLimit-Reset-After", "X-RateLimit-Bucket"},
			MaxAge:         86400,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	gate := newRateLimitGate(limiter)

	r.Route("/embed", func(r chi.Router) {
		r.With(gate.limit(ratelimit.BucketCreate)).Post("/create", h.CreateEmbed)
		r.With(gate.limit(ratelimit.BucketGenerate)).Get("/quick", h.QuickEmbed)
		r.With(gate.limit(ratelimit.BucketGenerate)).Get("/{code}", h.GetEmbed)
		r.With(gate.limit(ratelimit.BucketEdit)).Put("/{code}", h.UpdateEmbed)
		r.With(gate.limit(ratelimit.BucketDelete)).Delete("/{code}", h.DeleteEmbed)
	})

	return otelhttp.NewHandler(r, "ogembed")
}
