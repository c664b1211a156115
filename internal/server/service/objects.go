// Package service бизнес-логика сервера холстов, общая для REST и потока событий.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
	"github.com/iudanet/canvassync/internal/validation"
	"github.com/iudanet/canvassync/pkg/api"
)

//go:generate go tool moq -out broadcaster_mock.go . Broadcaster

// Broadcaster рассылает событие участникам холста, кроме exclude.
// Возвращает число получателей.
type Broadcaster interface {
	Broadcast(canvasID string, ev api.Event, exclude string) int
}

// Recorder метрики мутаций; *metrics.Server удовлетворяет интерфейсу
type Recorder interface {
	ObserveMutation(updateType, result string)
	ObserveBroadcast(recipients int)
}

// Actor автор мутации
type Actor struct {
	UserID   string
	Username string
	// ConnID соединение-источник; ему не рассылается broadcast
	ConnID string
}

// Option настраивает Objects
type Option func(*Objects)

// WithRecorder подключает метрики
func WithRecorder(r Recorder) Option {
	return func(o *Objects) { o.recorder = r }
}

// WithClock подменяет часы (для тестов)
func WithClock(now func() time.Time) Option {
	return func(o *Objects) { o.now = now }
}

// Objects применяет мутации объектов: версия растет на каждой принятой
// мутации, повтор с тем же operation_id возвращает записанный результат.
// Сервер не отклоняет мутации по base_version: побеждает последняя запись.
type Objects struct {
	store       storage.ObjectStorage
	broadcaster Broadcaster
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewObjects создает сервис. broadcaster может быть nil.
func NewObjects(store storage.ObjectStorage, broadcaster Broadcaster, logger *slog.Logger, opts ...Option) *Objects {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Objects{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create создает объект. Пустой ObjectID получает uuid.
func (o *Objects) Create(ctx context.Context, actor Actor, m api.ObjectMutation) (*models.CanvasObject, error) {
	if err := validation.ValidateID("canvas_id", m.CanvasID); err != nil {
		return nil, o.fail(models.UpdateCreate, badRequest(err.Error()))
	}
	if m.ObjectID == "" {
		m.ObjectID = uuid.NewString()
	}
	if err := validation.ValidateID("object_id", m.ObjectID); err != nil {
		return nil, o.fail(models.UpdateCreate, badRequest(err.Error()))
	}
	if err := validation.ValidateObjectType(models.ObjectType(m.ObjectType)); err != nil {
		return nil, o.fail(models.UpdateCreate, invalid(CodeInvalidProperties, err))
	}
	if err := validation.ValidateProperties(m.Properties); err != nil {
		return nil, o.fail(models.UpdateCreate, invalid(CodeInvalidProperties, err))
	}

	if op, err := o.replay(ctx, m, models.UpdateCreate); err != nil || op != nil {
		if err != nil {
			return nil, o.fail(models.UpdateCreate, err)
		}
		return op.Object, nil
	}

	obj := &models.CanvasObject{
		ID:         m.ObjectID,
		CanvasID:   m.CanvasID,
		ObjectType: models.ObjectType(m.ObjectType),
		Properties: models.Properties(m.Properties).Clone(),
		CreatedBy:  actor.UserID,
		CreatedAt:  o.now().UTC(),
	}
	created, err := o.store.CreateObject(ctx, obj, m.OperationID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectExists) {
			return nil, o.fail(models.UpdateCreate, &Error{
				Status:  http.StatusConflict,
				Code:    CodeAlreadyExists,
				Message: fmt.Sprintf("object %s already exists", m.ObjectID),
				Err:     err,
			})
		}
		return nil, o.fail(models.UpdateCreate, internal(err))
	}

	o.logger.InfoContext(ctx, "object created",
		slog.String("canvas_id", created.CanvasID),
		slog.String("object_id", created.ID),
		slog.String("operation_id", m.OperationID),
		slog.String("user_id", actor.UserID))
	o.observe(models.UpdateCreate, "ok")
	o.broadcastChanged(created, m.OperationID, actor.ConnID)
	return created, nil
}

// Update заменяет свойства объекта целиком
func (o *Objects) Update(ctx context.Context, actor Actor, m api.ObjectMutation) (*models.CanvasObject, error) {
	if err := o.validateTarget(m); err != nil {
		return nil, o.fail(models.UpdateUpdate, err)
	}
	if err := validation.ValidateProperties(m.Properties); err != nil {
		return nil, o.fail(models.UpdateUpdate, invalid(CodeInvalidProperties, err))
	}

	if op, err := o.replay(ctx, m, models.UpdateUpdate); err != nil || op != nil {
		if err != nil {
			return nil, o.fail(models.UpdateUpdate, err)
		}
		return op.Object, nil
	}

	updated, err := o.store.UpdateObject(ctx, m.CanvasID, m.ObjectID, models.Properties(m.Properties), m.OperationID, o.now())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, o.fail(models.UpdateUpdate, notFound(fmt.Sprintf("object %s not found", m.ObjectID), err))
		}
		return nil, o.fail(models.UpdateUpdate, internal(err))
	}

	if m.BaseVersion > 0 && m.BaseVersion != updated.Version-1 {
		o.logger.DebugContext(ctx, "stale base version overwritten",
			slog.String("object_id", m.ObjectID),
			slog.Int64("base_version", m.BaseVersion),
			slog.Int64("version", updated.Version))
	}
	o.logger.InfoContext(ctx, "object updated",
		slog.String("canvas_id", updated.CanvasID),
		slog.String("object_id", updated.ID),
		slog.Int64("version", updated.Version),
		slog.String("operation_id", m.OperationID),
		slog.String("user_id", actor.UserID))
	o.observe(models.UpdateUpdate, "ok")
	o.broadcastChanged(updated, m.OperationID, actor.ConnID)
	return updated, nil
}

// Delete удаляет объект и возвращает версию удаления
func (o *Objects) Delete(ctx context.Context, actor Actor, m api.ObjectMutation) (int64, error) {
	if err := o.validateTarget(m); err != nil {
		return 0, o.fail(models.UpdateDelete, err)
	}

	if op, err := o.replay(ctx, m, models.UpdateDelete); err != nil || op != nil {
		if err != nil {
			return 0, o.fail(models.UpdateDelete, err)
		}
		return op.Version, nil
	}

	version, err := o.store.DeleteObject(ctx, m.CanvasID, m.ObjectID, m.OperationID, o.now())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return 0, o.fail(models.UpdateDelete, notFound(fmt.Sprintf("object %s not found", m.ObjectID), err))
		}
		return 0, o.fail(models.UpdateDelete, internal(err))
	}

	o.logger.InfoContext(ctx, "object deleted",
		slog.String("canvas_id", m.CanvasID),
		slog.String("object_id", m.ObjectID),
		slog.Int64("version", version),
		slog.String("operation_id", m.OperationID),
		slog.String("user_id", actor.UserID))
	o.observe(models.UpdateDelete, "ok")

	if o.broadcaster != nil {
		ev, err := api.NewEvent(uuid.NewString(), api.EventObjectDeleted, api.PriorityHigh, api.ObjectDeleted{
			ObjectID:    m.ObjectID,
			CanvasID:    m.CanvasID,
			OperationID: m.OperationID,
			Version:     version,
		})
		if err == nil {
			o.broadcast(m.CanvasID, ev, actor.ConnID)
		}
	}
	return version, nil
}

// Get возвращает объект холста
func (o *Objects) Get(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error) {
	obj, err := o.store.GetObject(ctx, canvasID, objectID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFound(fmt.Sprintf("object %s not found", objectID), err)
		}
		return nil, internal(err)
	}
	return obj, nil
}

// List возвращает все объекты холста
func (o *Objects) List(ctx context.Context, canvasID string) ([]*models.CanvasObject, error) {
	if err := validation.ValidateID("canvas_id", canvasID); err != nil {
		return nil, badRequest(err.Error())
	}
	objects, err := o.store.ListObjects(ctx, canvasID)
	if err != nil {
		return nil, internal(err)
	}
	return objects, nil
}

func (o *Objects) validateTarget(m api.ObjectMutation) *Error {
	if err := validation.ValidateID("canvas_id", m.CanvasID); err != nil {
		return badRequest(err.Error())
	}
	if err := validation.ValidateID("object_id", m.ObjectID); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

// replay возвращает записанный результат операции, если она уже применялась
func (o *Objects) replay(ctx context.Context, m api.ObjectMutation, t models.UpdateType) (*storage.Operation, *Error) {
	if m.OperationID == "" {
		return nil, nil
	}
	op, err := o.store.GetOperation(ctx, m.OperationID)
	if err != nil {
		if errors.Is(err, storage.ErrOperationNotFound) {
			return nil, nil
		}
		return nil, internal(err)
	}
	if op.CanvasID != m.CanvasID || op.ObjectID != m.ObjectID || op.Type != t {
		return nil, &Error{
			Status:  http.StatusConflict,
			Code:    CodeOperationMismatch,
			Message: fmt.Sprintf("operation %s was already used for another mutation", m.OperationID),
		}
	}
	o.logger.DebugContext(ctx, "operation replayed",
		slog.String("operation_id", op.ID),
		slog.Int64("version", op.Version))
	o.observe(t, "replayed")
	return op, nil
}

func (o *Objects) broadcastChanged(obj *models.CanvasObject, operationID, exclude string) {
	if o.broadcaster == nil {
		return
	}
	ev, err := api.NewEvent(uuid.NewString(), api.EventObjectChanged, api.PriorityNormal, api.ObjectChanged{
		Object:      obj.ToAPI(),
		OperationID: operationID,
	})
	if err != nil {
		o.logger.Error("failed to build change event", slog.Any("error", err))
		return
	}
	o.broadcast(obj.CanvasID, ev, exclude)
}

func (o *Objects) broadcast(canvasID string, ev api.Event, exclude string) {
	n := o.broadcaster.Broadcast(canvasID, ev, exclude)
	if o.recorder != nil {
		o.recorder.ObserveBroadcast(n)
	}
}

func (o *Objects) fail(t models.UpdateType, err *Error) error {
	result := "rejected"
	if err.Status >= http.StatusInternalServerError {
		result = "error"
		o.logger.Error("mutation failed", slog.String("type", string(t)), slog.Any("error", err))
	}
	o.observe(t, result)
	return err
}

func (o *Objects) observe(t models.UpdateType, result string) {
	if o.recorder != nil {
		o.recorder.ObserveMutation(string(t), result)
	}
}
