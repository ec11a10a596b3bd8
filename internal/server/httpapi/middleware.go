package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/keyhaven/keyhaven/internal/server/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext returns the authenticated user's id set by Authenticator.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// Authenticator verifies the bearer token and injects the user id into the
// request context. Requests without a valid token never reach the handler.
func Authenticator(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			userID, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil {
				writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VerificationGate decides whether the user's last biometric verification is
// recent enough for a sensitive operation.
type VerificationGate interface {
	RequireFreshVerification(ctx context.Context, userID string) error
}

// Sensitive wraps routes that reveal or mutate individual secrets. The gate
// runs after Authenticator, so the user id is always present.
func Sensitive(gate VerificationGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if err := gate.RequireFreshVerification(r.Context(), userID); err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
