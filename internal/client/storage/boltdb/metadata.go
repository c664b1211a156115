package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

// syncState метаданные синхронизации одного холста
type syncState struct {
	LastSync int64 `json:"last_sync"` // unix milli
}

func syncKey(canvasID string) []byte {
	return []byte("sync:" + canvasID)
}

// SaveLastSyncTimestamp запоминает время последней загрузки снимка холста
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, canvasID string, timestamp int64) error {
	return s.update(ctx, func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketMetadata), syncKey(canvasID), syncState{LastSync: timestamp})
	})
}

// GetLastSyncTimestamp возвращает 0, если холст еще не синхронизировался
func (s *Storage) GetLastSyncTimestamp(ctx context.Context, canvasID string) (int64, error) {
	var st syncState
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		_, err := getJSON(tx.Bucket(bucketMetadata), syncKey(canvasID), &st)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	return st.LastSync, nil
}
