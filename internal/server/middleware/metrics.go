package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// RequestRecorder метрики HTTP; *metrics.Server удовлетворяет интерфейсу
type RequestRecorder interface {
	ObserveRequest(method, route string, code int, elapsed time.Duration)
}

// MetricsMiddleware считает запросы по шаблону маршрута, а не по пути,
// чтобы id объектов не раздували кардинальность
func MetricsMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r)
			rec.ObserveRequest(r.Method, routeTemplate(r), wrapped.statusCode, time.Since(start))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
