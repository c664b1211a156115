// Package sync держит локальный снимок холста согласованным с сервером:
// восстанавливает его при старте, перезагружает после переподключения
// и сохраняет подтвержденные изменения из state.Store.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/state"
	"github.com/iudanet/canvassync/pkg/api"
)

//go:generate moq -out snapshot_mock.go . SnapshotAPI

// SnapshotAPI источник полного снимка холста
type SnapshotAPI interface {
	GetCanvasObjects(ctx context.Context, canvasID string) ([]api.Object, error)
}

// EventSource поток событий с подпиской по типу
type EventSource interface {
	Subscribe(eventType string, handler func(api.Event)) pubsub.Unsubscribe
}

// Result итог загрузки снимка
type Result struct {
	SyncedAt time.Time
	Objects  int
}

// Service синхронизация снимка холста
type Service struct {
	api      SnapshotAPI
	objects  storage.ObjectStorage
	metadata storage.MetadataStorage
	store    *state.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new sync service
func NewService(
	apiClient SnapshotAPI,
	objects storage.ObjectStorage,
	metadata storage.MetadataStorage,
	store *state.Store,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:      apiClient,
		objects:  objects,
		metadata: metadata,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Restore загружает сохраненный снимок в хранилище состояния (работа без сети)
func (s *Service) Restore(ctx context.Context, canvasID string) (int, error) {
	objects, err := s.objects.LoadObjects(ctx, canvasID)
	if err != nil {
		return 0, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	s.store.Load(objects)
	s.logger.Debug("local snapshot restored", "canvas_id", canvasID, "objects", len(objects))
	return len(objects), nil
}

// Pull загружает снимок с сервера, применяет его и сохраняет локально.
// Ожидающие согласования объекты не затрагиваются.
func (s *Service) Pull(ctx context.Context, canvasID string) (*Result, error) {
	remote, err := s.api.GetCanvasObjects(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch canvas objects: %w", err)
	}

	objects := make([]*models.CanvasObject, 0, len(remote))
	for _, o := range remote {
		objects = append(objects, models.ObjectFromAPI(o))
	}
	s.store.Load(objects)

	// На диск пишется подтвержденное сервером состояние, без оптимистичных значений
	if err := s.objects.ReplaceObjects(ctx, canvasID, objects); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	now := s.now()
	if err := s.metadata.SaveLastSyncTimestamp(ctx, canvasID, now.UnixMilli()); err != nil {
		s.logger.Warn("failed to save last sync timestamp", "canvas_id", canvasID, "error", err)
	}

	s.logger.Info("canvas snapshot pulled", "canvas_id", canvasID, "objects", len(objects))
	return &Result{Objects: len(objects), SyncedAt: now}, nil
}

// LastSynced время последней загрузки снимка; нулевое, если ее не было
func (s *Service) LastSynced(ctx context.Context, canvasID string) (time.Time, error) {
	ms, err := s.metadata.GetLastSyncTimestamp(ctx, canvasID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Persist сохраняет подтвержденные и удаленные изменения объектов холста.
// Оптимистичные значения не пишутся: они еще могут быть откачены.
func (s *Service) Persist(ctx context.Context, canvasID string) pubsub.Unsubscribe {
	return s.store.Subscribe(func(c state.Change) {
		if c.Kind != state.ChangeSettled && c.Kind != state.ChangeRemote {
			return
		}
		if c.Object != nil && c.Object.CanvasID != canvasID {
			return
		}

		var err error
		if c.Object == nil {
			err = s.objects.DeleteObject(ctx, canvasID, c.ObjectID)
		} else {
			err = s.objects.PutObject(ctx, c.Object)
		}
		if err != nil {
			s.logger.Warn("failed to persist object", "object_id", c.ObjectID, "error", err)
		}
	})
}

// ResyncOnReconnect перезагружает снимок после восстановления соединения:
// изменения, пропущенные за время обрыва, иначе не придут.
func (s *Service) ResyncOnReconnect(ctx context.Context, src EventSource, canvasID string) pubsub.Unsubscribe {
	return src.Subscribe(socket.EventReconnectSuccess, func(api.Event) {
		go func() {
			if _, err := s.Pull(ctx, canvasID); err != nil {
				s.logger.Warn("resync after reconnect failed", "canvas_id", canvasID, "error", err)
			}
		}()
	})
}
