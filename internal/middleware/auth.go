package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/auth"
)

type ctxKey string

const ctxMerchantIDKey ctxKey = "mid"

// MerchantID returns the authenticated merchant set by Auth.
func MerchantID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxMerchantIDKey).(string)
	return v, ok && v != ""
}

type AuthMiddleware struct {
	TM *auth.TokenManager
}

func NewAuthMiddleware(tm *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{TM: tm}
}

// Auth accepts "Authorization: Bearer <access JWT>" and stores the merchant id
// from its claims on the request context.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_error", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])

		claims, err := m.TM.ParseAccess(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_error", "invalid access token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxMerchantIDKey, claims.MerchantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
