package storage

import (
	"context"

	"github.com/iudanet/canvassync/internal/models"
)

//go:generate moq -out objects_mock.go . ObjectStorage

// ObjectStorage локальный снимок объектов холста.
// Снимок отражает последнее подтвержденное состояние, оптимистичные кандидаты туда не пишутся.
type ObjectStorage interface {
	// ReplaceObjects заменяет снимок холста целиком
	ReplaceObjects(ctx context.Context, canvasID string, objects []*models.CanvasObject) error

	// PutObject сохраняет или обновляет один объект
	PutObject(ctx context.Context, object *models.CanvasObject) error

	// DeleteObject удаляет объект из снимка; отсутствие объекта не ошибка
	DeleteObject(ctx context.Context, canvasID, objectID string) error

	// GetObject returns ErrObjectNotFound if the object is not in the snapshot
	GetObject(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error)

	// LoadObjects возвращает снимок холста, отсортированный по id
	LoadObjects(ctx context.Context, canvasID string) ([]*models.CanvasObject, error)
}
