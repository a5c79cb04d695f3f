package apimiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns a sliding-window IP-keyed rate limiter, grounded in
// ManuGH-xg2g's internal/api/middleware/ratelimit.go. The control surface
// (§6) has no per-user quota in spec.md, so this guards only against abusive
// request volume ahead of the store and the pool.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Busy","message":"rate limit exceeded"}`))
		}),
	)
}
