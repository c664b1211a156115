package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage отметки синхронизации по холстам, unix ms.
// Для холста, который ни разу не загружался, отметка 0.
type MetadataStorage interface {
	SaveLastSyncTimestamp(ctx context.Context, canvasID string, timestamp int64) error
	GetLastSyncTimestamp(ctx context.Context, canvasID string) (int64, error)
}
