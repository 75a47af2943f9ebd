package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/pkg/response"
)

type userIDContextKey struct{}

// userIDHeader carries the caller's identity, set by the auth gateway in
// front of this service. Token verification happens there, not here.
const userIDHeader = "X-User-ID"

// RequireUser extracts the caller identity from the X-User-ID header and
// stores it in the context. Requests without it are rejected.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			response.Error(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("user_id", userID)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the caller identity set by RequireUser. Empty when the
// middleware did not run.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
