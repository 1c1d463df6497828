package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware validates Bearer tokens and injects the authenticated
// uid into the request context. Verification is local, so unauthorized
// requests are rejected before any record store call happens.
func AuthMiddleware(authSvc *service.Auth, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			identity, err := authSvc.Verify(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UIDFromContext extracts the authenticated user id from context.
func UIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(identityKey).(string)
	return v
}
