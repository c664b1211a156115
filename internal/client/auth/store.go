package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/crypto"
)

// Store шифрует токены перед записью в storage.AuthStorage и расшифровывает при чтении.
// Ключ выводится из passphrase и соли, которая хранится рядом с токенами открыто.
type Store struct {
	storage    storage.AuthStorage
	params     crypto.KeyParams
	passphrase string

	mu   sync.Mutex
	keys map[string][]byte // соль (base64) -> ключ
}

// NewStore создает Store
func NewStore(st storage.AuthStorage, passphrase string, params crypto.KeyParams) *Store {
	return &Store{
		storage:    st,
		passphrase: passphrase,
		params:     params,
		keys:       make(map[string][]byte),
	}
}

func (s *Store) key(saltB64 string) ([]byte, error) {
	if s.passphrase == "" {
		return nil, ErrNoPassphrase
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[saltB64]; ok {
		return k, nil
	}
	k, err := crypto.DeriveKeyFromBase64Salt(s.passphrase, saltB64, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	s.keys[saltB64] = k
	return k, nil
}

// Save шифрует токены и сохраняет данные.
// Токены во входной структуре остаются открытыми; пустая KeySalt заполняется новой солью.
func (s *Store) Save(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return fmt.Errorf("auth data is nil")
	}

	if auth.KeySalt == "" {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		auth.KeySalt = base64.StdEncoding.EncodeToString(salt)
	}
	sealed := *auth

	key, err := s.key(sealed.KeySalt)
	if err != nil {
		return err
	}

	aad := []byte(auth.Username)
	if sealed.AccessToken, err = crypto.Seal([]byte(auth.AccessToken), key, aad); err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if sealed.RefreshToken, err = crypto.Seal([]byte(auth.RefreshToken), key, aad); err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	return s.storage.SaveAuth(ctx, &sealed)
}

// Load читает и расшифровывает данные.
// Returns storage.ErrAuthNotFound if nothing is stored.
func (s *Store) Load(ctx context.Context) (*storage.AuthData, error) {
	stored, err := s.storage.GetAuth(ctx)
	if err != nil {
		return nil, err
	}

	key, err := s.key(stored.KeySalt)
	if err != nil {
		return nil, err
	}

	aad := []byte(stored.Username)
	access, err := crypto.Open(stored.AccessToken, key, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := crypto.Open(stored.RefreshToken, key, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	auth := *stored
	auth.AccessToken = string(access)
	auth.RefreshToken = string(refresh)
	return &auth, nil
}

// Delete удаляет данные; отсутствие данных не ошибка
func (s *Store) Delete(ctx context.Context) error {
	err := s.storage.DeleteAuth(ctx)
	if err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return err
	}
	return nil
}
