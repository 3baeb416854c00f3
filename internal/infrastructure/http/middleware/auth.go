package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/taskloop/internal/auth"
	"github.com/taskloop/taskloop/internal/infrastructure/http/response"
)

// Auth is HTTP middleware for bearer-token authentication. It validates the
// token signature and pins the token's subject to the user_id path segment.
type Auth struct {
	validator *auth.TokenValidator
}

// NewAuth creates a new auth middleware.
func NewAuth(validator *auth.TokenValidator) *Auth {
	return &Auth{validator: validator}
}

// Validate is a Chi middleware that validates tokens from the Authorization
// header. Expects format: "Authorization: Bearer <token>". A valid token for
// a different user than the one in the URL is rejected with 403.
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			slog.WarnContext(r.Context(), "authentication failed: missing Authorization header",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "missing Authorization header")
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			slog.WarnContext(r.Context(), "authentication failed: invalid Authorization header format",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid Authorization header format, expected: Bearer <token>")
			return
		}

		tokenUserID, err := a.validator.UserID(token)
		if err != nil {
			slog.WarnContext(r.Context(), "authentication failed: invalid token",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		pathUserID := chi.URLParam(r, "user_id")
		if pathUserID == "" || pathUserID != tokenUserID {
			slog.WarnContext(r.Context(), "authorization failed: token user does not match path user",
				"path", r.URL.Path,
				"method", r.Method)
			response.Forbidden(w, "token does not match requested user")
			return
		}

		next.ServeHTTP(w, r)
	})
}
