package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/baharkarakas/paycore/internal/api/httpx"
)

// AdminToken gates operator routes behind "X-Admin-Token". An empty token
// turns the routes off.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
				return
			}
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpx.WriteError(w, http.StatusUnauthorized, "authentication_error", "invalid admin token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
