package auth

import (
	"context"

	pkgapi "github.com/iudanet/canvassync/pkg/api"
)

//go:generate moq -out authenticator_mock.go . Authenticator

// CredentialProvider выдает действующий токен доступа.
// GetValidCredential возвращает пустую строку без ошибки, если пользователь
// не вошел; запрос тогда выполняется без аутентификации.
type CredentialProvider interface {
	GetValidCredential(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) error
	ClearCredential(ctx context.Context) error
}

// Authenticator - часть API клиента, нужная сервису авторизации
type Authenticator interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
}
