// Package apimiddleware ports the teacher's httprouter-handle middleware
// (middleware/auth.go, cors.go, logging.go) onto chi's standard
// func(http.Handler) http.Handler signature, and adds the rate-limit layer
// SPEC_FULL.md's C8 section calls for.
package apimiddleware

import (
	"net/http"
	"strings"

	"github.com/clipforge/highlighter/internal/errkind"
)

// RequireBearerToken rejects any request whose Authorization header does
// not carry the configured API token, mirroring the teacher's IsAuthorized
// middleware (middleware/auth.go) generalized to chi's handler chain.
func RequireBearerToken(apiToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "missing authorization header", nil))
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token != apiToken {
				errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "invalid bearer token", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
