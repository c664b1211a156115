package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
)

const (
	userColumns  = `id, username, password_hash, created_at, updated_at`
	tokenColumns = `id, token_hash, user_id, expires_at, created_at`
)

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, toNanos(user.CreatedAt), toNanos(user.UpdatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return storage.ErrUserAlreadyExists
	default:
		return fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = fromNanos(createdAt), fromNanos(updatedAt)
	return &u, nil
}

// SaveRefreshToken; токен неизвестного пользователя отклоняет внешний ключ
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.TokenHash, token.UserID, toNanos(token.ExpiresAt), toNanos(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

func (s *Storage) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var (
		t                    models.RefreshToken
		expiresAt, createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.TokenHash, &t.UserID, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	t.ExpiresAt, t.CreatedAt = fromNanos(expiresAt), fromNanos(createdAt)
	return &t, nil
}

func (s *Storage) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	n, err := s.execCount(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if n == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	n, err := s.execCount(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens of user %s: %w", userID, err)
	}
	return n, nil
}

func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	n, err := s.execCount(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, toNanos(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return n, nil
}

// execCount выполняет запрос и возвращает число затронутых строк
func (s *Storage) execCount(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
