package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/models"
)

// canvasBucket возвращает bucket холста; при create=true создает его
func canvasBucket(tx *bbolt.Tx, canvasID string, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket(bucketObjects)
	if root == nil {
		return nil, fmt.Errorf("objects bucket not found")
	}
	if !create {
		return root.Bucket([]byte(canvasID)), nil
	}
	b, err := root.CreateBucketIfNotExists([]byte(canvasID))
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas bucket: %w", err)
	}
	return b, nil
}

func putObject(b *bbolt.Bucket, obj *models.CanvasObject) error {
	if err := putJSON(b, []byte(obj.ID), obj); err != nil {
		return fmt.Errorf("failed to save object %s: %w", obj.ID, err)
	}
	return nil
}

// ReplaceObjects заменяет снимок холста целиком
func (s *Storage) ReplaceObjects(ctx context.Context, canvasID string, objects []*models.CanvasObject) error {
	if canvasID == "" {
		return fmt.Errorf("canvas id is empty")
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketObjects)
		if root == nil {
			return fmt.Errorf("objects bucket not found")
		}
		if root.Bucket([]byte(canvasID)) != nil {
			if err := root.DeleteBucket([]byte(canvasID)); err != nil {
				return fmt.Errorf("failed to drop canvas bucket: %w", err)
			}
		}
		b, err := canvasBucket(tx, canvasID, true)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			if obj == nil {
				continue
			}
			if err := putObject(b, obj); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutObject сохраняет или обновляет объект
func (s *Storage) PutObject(ctx context.Context, object *models.CanvasObject) error {
	if object == nil || object.ID == "" || object.CanvasID == "" {
		return fmt.Errorf("object must have id and canvas id")
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b, err := canvasBucket(tx, object.CanvasID, true)
		if err != nil {
			return err
		}
		return putObject(b, object)
	})
}

// DeleteObject удаляет объект из снимка
func (s *Storage) DeleteObject(ctx context.Context, canvasID, objectID string) error {
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b, err := canvasBucket(tx, canvasID, false)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(objectID)); err != nil {
			return fmt.Errorf("failed to delete object %s: %w", objectID, err)
		}
		return nil
	})
}

// GetObject возвращает объект из снимка
func (s *Storage) GetObject(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error) {
	var obj *models.CanvasObject
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := canvasBucket(tx, canvasID, false)
		if err != nil {
			return err
		}
		if b == nil {
			return storage.ErrObjectNotFound
		}
		obj = &models.CanvasObject{}
		found, err := getJSON(b, []byte(objectID), obj)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrObjectNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// LoadObjects возвращает все объекты холста в порядке ключей (id)
func (s *Storage) LoadObjects(ctx context.Context, canvasID string) ([]*models.CanvasObject, error) {
	var objects []*models.CanvasObject
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := canvasBucket(tx, canvasID, false)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			obj := &models.CanvasObject{}
			if err := json.Unmarshal(v, obj); err != nil {
				return fmt.Errorf("failed to unmarshal object %s: %w", k, err)
			}
			objects = append(objects, obj)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
