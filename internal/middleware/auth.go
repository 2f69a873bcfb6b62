package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/ctxkeys"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/service"
)

// Auth resolves the caller from a bearer access token (Authorization
// header first, access_token cookie as fallback) and puts the user on
// the request context. Requests without a usable token continue
// anonymously; RequireAuth decides whether that is acceptable.
func Auth(authService *service.AuthService, userRepository repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.VerifyAccessToken(token)
			if err != nil {
				if appErr := apperr.From(err); appErr != nil && appErr.Code == "TOKEN_EXPIRED" {
					writeError(w, appErr.Status, appErr.Code, appErr.Message)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := userRepository.ByID(claims.UserID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if !user.IsActive {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "account is deactivated")
				return
			}

			// Never expose the hash beyond this point.
			user.PasswordHash = nil

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with a 401 envelope.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "AUTH_ERROR", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireAdmin allows only admin and superadmin callers.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if !user.IsAdmin() {
			slog.Warn("admin route denied", "user_id", user.ID, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// writeError emits the shared error envelope without importing the
// handler package.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
	if err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
