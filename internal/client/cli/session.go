package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/client/auth"
	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/canvassync/internal/client/sync"
	"github.com/iudanet/canvassync/internal/config"
	"github.com/iudanet/canvassync/internal/conflict"
	"github.com/iudanet/canvassync/internal/crypto"
	"github.com/iudanet/canvassync/internal/duplicate"
	"github.com/iudanet/canvassync/internal/metrics"
	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/queue"
	"github.com/iudanet/canvassync/internal/reconcile"
	"github.com/iudanet/canvassync/internal/state"
	"github.com/iudanet/canvassync/internal/transport"
	"github.com/iudanet/canvassync/internal/verify"
)

// keyParams параметры вывода ключа кеша токенов; тесты ослабляют
var keyParams = crypto.DefaultKeyParams

// Session клиентский стек одного холста
type Session struct {
	Auth     *auth.Service
	API      *api.Client
	Socket   *socket.Client
	Sync     *clientsync.Service
	Orch     *reconcile.Orchestrator
	Registry *prometheus.Registry

	storage  *boltdb.Storage
	logger   *slog.Logger
	canvasID string
	unsubs   []pubsub.Unsubscribe
}

// NewSession открывает локальную базу и собирает стек.
// Сеть не трогает: соединение устанавливает Open.
func NewSession(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bolt, err := boltdb.New(ctx, cfg.Client.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	serverURL := cfg.Client.ServerURL
	authStore := auth.NewStore(bolt, cfg.Client.TokenPassphrase, keyParams)
	// отдельный клиент для авторизации: объектному нужен authSvc
	authSvc := auth.NewService(api.NewClient(serverURL, api.WithLogger(logger)), authStore, serverURL, logger)
	objAPI := api.NewClient(serverURL, api.WithCredentials(authSvc), api.WithLogger(logger))

	sock := socket.NewClient(socket.Config{
		URL:           cfg.Client.SocketURL(),
		Reconnect:     cfg.Client.Reconnect.Policy(),
		BufferSize:    cfg.Client.BufferSize,
		AutoReconnect: cfg.Client.AutoReconnect,
	}, authSvc, logger)

	reg := metrics.NewRegistry()
	m := metrics.NewClient(reg)

	tr := transport.New(cfg.Transport.Transport(), sock, objAPI, logger,
		transport.WithRefresher(authSvc),
		transport.WithObserver(m),
	)
	ver := verify.New(cfg.Verify, objAPI, sock, logger, verify.WithObserver(m))

	q := queue.New(logger, queue.WithHistorySize(cfg.Reconcile.QueueHistorySize))
	st := state.NewStore()
	orch, err := reconcile.New(cfg.Reconcile.Orchestrator(), reconcile.Deps{
		Sender:     tr,
		Verifier:   ver,
		Observer:   m,
		Queue:      q,
		Resolver:   conflict.NewResolver(cfg.Conflict, logger),
		Duplicates: duplicate.NewDetector(cfg.Duplicate, q.HasPendingDelete),
		Store:      st,
		Logger:     logger,
	})
	if err != nil {
		_ = bolt.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &Session{
		Auth:     authSvc,
		API:      objAPI,
		Socket:   sock,
		Sync:     clientsync.NewService(objAPI, bolt, bolt, st, logger),
		Orch:     orch,
		Registry: reg,
		storage:  bolt,
		logger:   logger,
		canvasID: cfg.Client.CanvasID,
	}, nil
}

// CanvasID холст сессии
func (s *Session) CanvasID() string {
	return s.canvasID
}

// Open поднимает локальный снимок, подключает поток событий и
// догружает состояние с сервера. Недоступный поток не ошибка:
// транспорт уйдет в REST.
func (s *Session) Open(ctx context.Context) error {
	if _, err := s.Auth.Session(ctx); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			return fmt.Errorf("not authenticated. Please run 'canvassync login' first")
		}
		return err
	}

	restored, err := s.Sync.Restore(ctx, s.canvasID)
	if err != nil {
		return fmt.Errorf("failed to restore local snapshot: %w", err)
	}

	s.unsubs = append(s.unsubs,
		s.Orch.Attach(s.Socket),
		s.Sync.Persist(ctx, s.canvasID),
		s.Sync.ResyncOnReconnect(ctx, s.Socket, s.canvasID),
	)

	if err := s.Socket.Connect(ctx); err != nil {
		s.logger.Warn("event stream unavailable, using REST only", "error", err)
	}

	if _, err := s.Sync.Pull(ctx, s.canvasID); err != nil {
		if restored == 0 {
			return fmt.Errorf("failed to load canvas: %w", err)
		}
		s.logger.Warn("working from local snapshot", "objects", restored, "error", err)
	}
	return nil
}

// Close отписывает обработчики, закрывает поток и базу
func (s *Session) Close() error {
	for i := len(s.unsubs) - 1; i >= 0; i-- {
		s.unsubs[i]()
	}
	s.unsubs = nil
	return errors.Join(s.Socket.Close(), s.storage.Close())
}
