package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/canvassync/internal/server/handlers"
)

// bearerToken достает токен из "Authorization: Bearer <token>".
// Вторым значением возвращается текст ошибки для клиента.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing token"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "invalid token format"
	}
	return token, ""
}

// AuthMiddleware кладет user_id и username из access token в контекст.
// WebSocket рукопожатие проходит через него же.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				logger.Warn("Rejected request without valid bearer", "path", r.URL.Path, "reason", problem)
				handlers.WriteError(w, "unauthorized", problem, http.StatusUnauthorized)
				return
			}

			claims, err := jwtConfig.Verify(token)
			if err != nil {
				logger.Warn("Invalid access token", "path", r.URL.Path, "error", err)
				handlers.WriteError(w, "unauthorized", "invalid token", http.StatusUnauthorized)
				return
			}

			logger.Debug("User authenticated", "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(handlers.WithUser(r.Context(), claims.UserID, claims.Username)))
		})
	}
}
