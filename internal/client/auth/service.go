package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/validation"
	pkgapi "github.com/iudanet/canvassync/pkg/api"
)

// DefaultRefreshSkew токен обновляется заранее, за это время до истечения
const DefaultRefreshSkew = 30 * time.Second

// Service авторизация и выдача токенов (CredentialProvider).
// Расшифрованная сессия кешируется в памяти; параллельные обновления
// токена схлопываются в один запрос.
type Service struct {
	now       func() time.Time
	api       Authenticator
	store     *Store
	logger    *slog.Logger
	session   *storage.AuthData
	serverURL string
	refresh   singleflight.Group
	skew      time.Duration
	mu        sync.Mutex
}

var _ CredentialProvider = (*Service)(nil)

// NewService создает сервис авторизации
func NewService(authAPI Authenticator, store *Store, serverURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       authAPI,
		store:     store,
		serverURL: serverURL,
		logger:    logger,
		skew:      DefaultRefreshSkew,
		now:       time.Now,
	}
}

// SetClock подменяет часы (для тестов)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Register регистрирует нового пользователя
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}

	resp, err := s.api.Register(ctx, pkgapi.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	return resp.UserID, nil
}

// Login выполняет вход и сохраняет зашифрованную сессию
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("invalid password: password cannot be empty")
	}

	resp, err := s.api.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	session := &storage.AuthData{
		Username:     username,
		ServerURL:    s.serverURL,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.logger.Info("logged in", "username", username)
	return nil
}

// Logout удаляет локальную сессию
func (s *Service) Logout(ctx context.Context) error {
	return s.ClearCredential(ctx)
}

// Session возвращает текущую сессию (копию)
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	session, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	c := *session
	return &c, nil
}

// load возвращает сессию из памяти или хранилища; nil если входа не было
func (s *Service) load(ctx context.Context) (*storage.AuthData, error) {
	s.mu.Lock()
	cached := s.session
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	session, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return session, nil
}

// GetValidCredential возвращает access token, обновляя его при приближении срока.
func (s *Service) GetValidCredential(ctx context.Context) (string, error) {
	session, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", nil
	}

	now := s.now()
	if now.Add(s.skew).Unix() < session.ExpiresAt {
		return session.AccessToken, nil
	}

	refreshed, err := s.doRefresh(ctx)
	if err == nil {
		return refreshed.AccessToken, nil
	}
	if api.IsUnauthorized(err) {
		// refresh token отозван или истек
		s.logger.Warn("refresh token rejected, clearing session", "error", err)
		if clearErr := s.ClearCredential(ctx); clearErr != nil {
			s.logger.Error("failed to clear session", "error", clearErr)
		}
		return "", nil
	}
	// Сеть недоступна, но токен еще действует
	if now.Unix() < session.ExpiresAt {
		s.logger.Warn("token refresh failed, using current token", "error", err)
		return session.AccessToken, nil
	}
	return "", fmt.Errorf("failed to refresh token: %w", err)
}

// ForceRefresh обновляет токен независимо от срока действия (например, после 401)
func (s *Service) ForceRefresh(ctx context.Context) error {
	session, err := s.load(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNotLoggedIn
	}
	if _, err := s.doRefresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	return nil
}

// ClearCredential удаляет сессию из памяти и хранилища
func (s *Service) ClearCredential(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Service) doRefresh(ctx context.Context) (*storage.AuthData, error) {
	v, err, _ := s.refresh.Do("refresh", func() (any, error) {
		s.mu.Lock()
		current := s.session
		s.mu.Unlock()
		if current == nil {
			return nil, ErrNotLoggedIn
		}

		resp, err := s.api.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		next := *current
		next.AccessToken = resp.AccessToken
		if resp.RefreshToken != "" {
			next.RefreshToken = resp.RefreshToken
		}
		next.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()

		if err := s.store.Save(ctx, &next); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}

		s.mu.Lock()
		s.session = &next
		s.mu.Unlock()

		s.logger.Debug("access token refreshed", "username", next.Username)
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*storage.AuthData), nil
}
