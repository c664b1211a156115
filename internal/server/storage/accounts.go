// Package storage описывает хранилище эталонного сервера: учетные записи,
// refresh-токены и объекты холстов. Реализация в sqlite.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/iudanet/canvassync/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrTokenNotFound     = errors.New("refresh token not found")
)

// UserStorage учетные записи; username уникален, сравнение точное
type UserStorage interface {
	// CreateUser возвращает ErrUserAlreadyExists при занятом username
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// TokenStorage refresh-токены. Ключ поиска sha256 от токена,
// сам токен на сервере не хранится.
type TokenStorage interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// GetRefreshToken and DeleteRefreshToken return ErrTokenNotFound for unknown hashes
	GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	// DeleteUserTokens отзывает все сессии пользователя, возвращает их число
	DeleteUserTokens(ctx context.Context, userID string) (int, error)
	// DeleteExpiredTokens чистка по таймеру сервера
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}
