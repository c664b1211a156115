package boltdb

import (
	"context"
	"errors"

	"go.etcd.io/bbolt"

	"github.com/iudanet/canvassync/internal/client/storage"
)

// одна сессия на базу
var authKey = []byte("session")

// SaveAuth пишет сессию как есть; токены шифрует вызывающий
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return errors.New("auth data is nil")
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketAuth), authKey, auth)
	})
}

// GetAuth returns storage.ErrAuthNotFound when nobody is logged in
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	auth := &storage.AuthData{}
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketAuth), authKey, auth)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrAuthNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// DeleteAuth удаляет сессию (logout)
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAuth)
		if b.Get(authKey) == nil {
			return storage.ErrAuthNotFound
		}
		return b.Delete(authKey)
	})
}
