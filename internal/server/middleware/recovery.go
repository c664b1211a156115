package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/canvassync/internal/server/handlers"
)

// RecoveryMiddleware превращает панику обработчика в 500 со стеком в логе.
// http.ErrAbortHandler пробрасывается дальше: им сервер обрывает соединение.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				switch v {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(v)
				}
				logger.Error("Panic recovered",
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("route", routeTemplate(r)),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("stack", string(debug.Stack())),
				)
				handlers.WriteError(w, "internal_server_error", "internal server error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
