// Package api implements the Othala REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware returns middleware that validates a bearer token when
// enabled; disabled mode passes every request through. The token may arrive
// as an "Authorization: Bearer <token>" header or, because EventSource
// clients cannot set headers, as an access_token query parameter on the
// events stream. Comparison is constant-time.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				presented = r.URL.Query().Get("access_token")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
