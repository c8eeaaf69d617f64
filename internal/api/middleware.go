// Package api implements the quill REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenQueryParam carries the token for GET requests from clients that
// cannot set headers, such as the browser EventSource.
const tokenQueryParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			given, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="quill"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return given, true
	}
	if r.Method == http.MethodGet {
		if given := r.URL.Query().Get(tokenQueryParam); given != "" {
			return given, true
		}
	}
	return "", false
}
