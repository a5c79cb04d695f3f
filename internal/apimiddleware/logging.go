package apimiddleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

// LogRequest logs each request after it completes and recovers panics into
// a 500, mirroring the teacher's LogRequest middleware (middleware/logging.go).
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapResponseWriter(w)

		metrics.Metrics.HTTPRequestsInFlight.Inc()
		defer metrics.Metrics.HTTPRequestsInFlight.Dec()

		defer func() {
			if rec := recover(); rec != nil {
				errkind.WriteHTTP(wrapped, errkind.New(errkind.Internal, "internal server error", nil))
				log.NoID("panic recovered in http handler", "err", rec, "trace", string(debug.Stack()))
			}
		}()

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		metrics.Metrics.HTTPRequestDuration.WithLabelValues(r.URL.Path, r.Method, statusLabel(wrapped.status)).Observe(duration.Seconds())
		log.NoID("http request",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", wrapped.status,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}
