// Package server собирает эталонный сервер: sqlite хранилище, сервис
// объектов, хаб потоков событий и HTTP маршруты.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/canvassync/internal/config"
	"github.com/iudanet/canvassync/internal/metrics"
	"github.com/iudanet/canvassync/internal/server/handlers"
	"github.com/iudanet/canvassync/internal/server/hub"
	"github.com/iudanet/canvassync/internal/server/middleware"
	"github.com/iudanet/canvassync/internal/server/service"
	"github.com/iudanet/canvassync/internal/server/storage/sqlite"
)

// Server эталонный сервер холстов
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	store   *sqlite.Storage
	hub     *hub.Hub
	limiter *middleware.RateLimiter
	router  *mux.Router
	now     func() time.Time
}

// New открывает хранилище и собирает маршруты. reg может быть nil,
// тогда создается собственный реестр метрик.
func New(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger, reg *prometheus.Registry, version string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	store, err := sqlite.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := metrics.NewServer(reg)
	h := hub.New(logger, m)
	objects := service.NewObjects(store, h, logger, service.WithRecorder(m))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		hub:     h,
		limiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger),
		now:     time.Now,
	}

	jwtConfig := handlers.JWTConfig{
		Secret:          []byte(cfg.JWTSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}

	s.router = s.routes(routeDeps{
		auth:    handlers.NewAuthHandler(logger, store, store, jwtConfig),
		health:  handlers.NewHealthHandler(logger, store, version),
		objects: handlers.NewObjectsHandler(logger, objects),
		stream:  handlers.NewStreamHandler(logger, objects, h, cfg.SendBuffer),
		metrics: m,
		reg:     reg,
		jwt:     jwtConfig,
	})

	return s, nil
}

// Handler корневой HTTP обработчик
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает cfg.ListenAddr до отмены ctx, затем закрывает потоки
// и дожидается завершения запросов в пределах ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", "addr", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.janitor(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		// Соединения WebSocket перехвачены и Shutdown их не ждет
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает хранилище и фоновые горутины
func (s *Server) Close() error {
	s.limiter.Stop()
	s.hub.Close()
	return s.store.Close()
}

// janitor периодически чистит просроченные токены и старый журнал операций
func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *Server) cleanup(ctx context.Context) {
	now := s.now()

	tokens, err := s.store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		s.logger.Error("failed to delete expired tokens", "error", err)
	}

	ops, err := s.store.DeleteOperationsBefore(ctx, now.Add(-s.cfg.OperationRetention))
	if err != nil {
		s.logger.Error("failed to delete old operations", "error", err)
	}

	if tokens > 0 || ops > 0 {
		s.logger.Info("cleanup finished", "expired_tokens", tokens, "operations", ops)
	}
}
