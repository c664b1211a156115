package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/canvassync/internal/metrics"
	"github.com/iudanet/canvassync/internal/server/handlers"
	"github.com/iudanet/canvassync/internal/server/middleware"
)

type routeDeps struct {
	auth    *handlers.AuthHandler
	health  *handlers.HealthHandler
	objects *handlers.ObjectsHandler
	stream  *handlers.StreamHandler
	metrics *metrics.Server
	reg     *prometheus.Registry
	jwt     handlers.JWTConfig
}

func (s *Server) routes(d routeDeps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, "not_found", "route not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, "method_not_allowed", "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingWithSkip(s.logger, []string{"/metrics", "/api/v1/health"}),
		middleware.MetricsMiddleware(d.metrics),
	)

	r.Handle("/metrics", metrics.Handler(d.reg)).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", d.health.Health).Methods(http.MethodGet)

	public := api.NewRoute().Subrouter()
	public.Use(middleware.RateLimitMiddleware(s.limiter))
	public.HandleFunc("/auth/register", d.auth.Register).Methods(http.MethodPost)
	public.HandleFunc("/auth/token", d.auth.Login).Methods(http.MethodPost)
	public.HandleFunc("/auth/refresh", d.auth.Refresh).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(
		middleware.RateLimitMiddleware(s.limiter),
		middleware.AuthMiddleware(s.logger, d.jwt),
	)
	protected.HandleFunc("/auth/logout", d.auth.Logout).Methods(http.MethodPost)

	canvas := protected.PathPrefix("/canvases/{canvasID}").Subrouter()
	canvas.HandleFunc("/objects", d.objects.List).Methods(http.MethodGet)
	canvas.HandleFunc("/objects", d.objects.Create).Methods(http.MethodPost)
	canvas.HandleFunc("/objects/{objectID}", d.objects.Get).Methods(http.MethodGet)
	canvas.HandleFunc("/objects/{objectID}", d.objects.Update).Methods(http.MethodPut)
	canvas.HandleFunc("/objects/{objectID}", d.objects.Delete).Methods(http.MethodDelete)
	canvas.HandleFunc("/ws", d.stream.Serve).Methods(http.MethodGet)

	return r
}
