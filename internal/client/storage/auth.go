package storage

import (
	"context"
	"errors"
)

var (
	ErrAuthNotFound   = errors.New("authentication data not found")
	ErrObjectNotFound = errors.New("object snapshot not found")
	ErrStorageClosed  = errors.New("storage is closed")
)

// AuthStorage хранит данные аутентификации клиента.
// Нижний слой: работает с уже зашифрованными токенами и сам ничего не шифрует.
type AuthStorage interface {
	// SaveAuth сохраняет данные как есть
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает сохраненные данные.
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет данные (logout)
	DeleteAuth(ctx context.Context) error
}

// AuthData данные аутентификации.
// В памяти токены открытые, в BoltDB лежит base64 шифротекста;
// шифрование выполняет auth.Store.
type AuthData struct {
	Username     string `json:"username"`
	UserID       string `json:"user_id"`
	ServerURL    string `json:"server_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	KeySalt      string `json:"key_salt"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}
