package storage

import (
	"context"
	"errors"
	"time"

	"github.com/iudanet/canvassync/internal/models"
)

var (
	ErrObjectNotFound    = errors.New("object not found")
	ErrObjectExists      = errors.New("object already exists")
	ErrOperationNotFound = errors.New("operation not found")
)

// Operation результат ранее примененной мутации, по нему повтор с тем же
// operation_id получает тот же ответ
type Operation struct {
	CreatedAt time.Time
	Object    *models.CanvasObject // nil после delete
	ID        string
	CanvasID  string
	ObjectID  string
	Type      models.UpdateType
	Version   int64
}

// ObjectStorage defines interface for canvas object persistence.
// Every mutation increments the object version and records its operation id
// in the same transaction.
type ObjectStorage interface {
	// CreateObject inserts a new object with version 1
	// Returns ErrObjectExists if the id is taken on the canvas
	CreateObject(ctx context.Context, obj *models.CanvasObject, operationID string) (*models.CanvasObject, error)

	// GetObject retrieves object by canvas and id
	// Returns ErrObjectNotFound if object doesn't exist
	GetObject(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error)

	// ListObjects retrieves all objects of a canvas ordered by creation time
	ListObjects(ctx context.Context, canvasID string) ([]*models.CanvasObject, error)

	// UpdateObject replaces object properties and increments its version
	// Returns ErrObjectNotFound if object doesn't exist
	UpdateObject(ctx context.Context, canvasID, objectID string, props models.Properties, operationID string, at time.Time) (*models.CanvasObject, error)

	// DeleteObject removes object and returns the version assigned to the deletion
	// Returns ErrObjectNotFound if object doesn't exist
	DeleteObject(ctx context.Context, canvasID, objectID, operationID string, at time.Time) (int64, error)

	// GetOperation returns the recorded result of an operation
	// Returns ErrOperationNotFound if the operation was never applied
	GetOperation(ctx context.Context, operationID string) (*Operation, error)
}
