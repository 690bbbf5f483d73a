package middleware

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/onnwee/replay/internal/auth"
)

// RequireAuth validates the bearer token on every request and stores the
// authenticated user ID in the context. Refresh tokens are not accepted on
// API endpoints.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "missing_token", "Authorization header with bearer token is required")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				code := "auth_failed"
				message := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					code = "token_expired"
					message = "Token has expired"
				}
				writeAuthError(w, r, code, message)
				return
			}

			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "auth_failed", "Access token required")
				return
			}
			if claims.Subject == "" {
				writeAuthError(w, r, "auth_failed", "Token has no subject")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 in the standard error envelope. Written here
// rather than through the api package to avoid an import cycle.
func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := SetErrorCode(r.Context(), code)
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}
