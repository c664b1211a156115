package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/crypto"
	pkgapi "github.com/iudanet/canvassync/pkg/api"
)

// memAuthStorage хранит AuthData в памяти
type memAuthStorage struct {
	data *storage.AuthData
	mu   sync.Mutex
}

func (m *memAuthStorage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *auth
	m.data = &c
	return nil
}

func (m *memAuthStorage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, storage.ErrAuthNotFound
	}
	c := *m.data
	return &c, nil
}

func (m *memAuthStorage) DeleteAuth(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return storage.ErrAuthNotFound
	}
	m.data = nil
	return nil
}

var testKeyParams = crypto.KeyParams{Time: 1, Memory: 1024, Threads: 1}

type fixture struct {
	raw   *memAuthStorage
	authn *AuthenticatorMock
	svc   *Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		raw:   &memAuthStorage{},
		authn: &AuthenticatorMock{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.authn, NewStore(f.raw, "passphrase", testKeyParams), "http://localhost:8080", nil)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) login(t *testing.T, expiresIn int64) {
	t.Helper()
	f.authn.LoginFunc = func(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error) {
		return &pkgapi.TokenResponse{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: expiresIn}, nil
	}
	require.NoError(t, f.svc.Login(context.Background(), "alice", "secret-password"))
}

func TestStore_EncryptsTokensAtRest(t *testing.T) {
	ctx := context.Background()
	raw := &memAuthStorage{}
	store := NewStore(raw, "passphrase", testKeyParams)

	auth := &storage.AuthData{Username: "alice", AccessToken: "plain-access", RefreshToken: "plain-refresh", ExpiresAt: 100}
	require.NoError(t, store.Save(ctx, auth))
	assert.NotEmpty(t, auth.KeySalt)
	assert.Equal(t, "plain-access", auth.AccessToken)

	stored, err := raw.GetAuth(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "plain-access", stored.AccessToken)
	assert.NotEqual(t, "plain-refresh", stored.RefreshToken)
	assert.Equal(t, auth.KeySalt, stored.KeySalt)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain-access", loaded.AccessToken)
	assert.Equal(t, "plain-refresh", loaded.RefreshToken)

	// Другая passphrase не расшифрует кеш
	_, err = NewStore(raw, "wrong", testKeyParams).Load(ctx)
	assert.ErrorIs(t, err, crypto.ErrDecrypt)

	// Без passphrase хранилище недоступно
	_, err = NewStore(raw, "", testKeyParams).Load(ctx)
	assert.ErrorIs(t, err, ErrNoPassphrase)

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestService_GetValidCredential_NotLoggedIn(t *testing.T) {
	f := newFixture(t)
	token, err := f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, f.authn.RefreshCalls())
}

func TestService_Login_ThenCredentialFromCache(t *testing.T) {
	f := newFixture(t)
	f.login(t, 3600)

	token, err := f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	// Новый сервис поверх того же хранилища читает расшифрованную сессию
	other := NewService(f.authn, NewStore(f.raw, "passphrase", testKeyParams), "", nil)
	other.SetClock(func() time.Time { return f.now })
	token, err = other.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	session, err := other.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "http://localhost:8080", session.ServerURL)
}

func TestService_Login_Validation(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.svc.Login(context.Background(), "a", "secret"))
	assert.Error(t, f.svc.Login(context.Background(), "alice", ""))
	assert.Empty(t, f.authn.LoginCalls())
}

func TestService_RefreshesNearExpiry(t *testing.T) {
	f := newFixture(t)
	f.login(t, 60)

	f.authn.RefreshFunc = func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
		assert.Equal(t, "refresh-1", refreshToken)
		return &pkgapi.TokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900}, nil
	}

	// Внутри окна упреждения
	f.now = f.now.Add(45 * time.Second)
	token, err := f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Len(t, f.authn.RefreshCalls(), 1)

	// Повторный вызов берет новый токен без запроса
	token, err = f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Len(t, f.authn.RefreshCalls(), 1)

	loaded, err := NewStore(f.raw, "passphrase", testKeyParams).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", loaded.RefreshToken)
}

func TestService_RefreshRejected_ClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, 10)

	f.authn.RefreshFunc = func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
		return nil, &api.APIError{StatusCode: 401, Code: "invalid_token", Message: "revoked"}
	}

	token, err := f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = f.raw.GetAuth(context.Background())
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestService_RefreshNetworkError(t *testing.T) {
	f := newFixture(t)
	f.login(t, 20)

	f.authn.RefreshFunc = func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
		return nil, errors.New("connection refused")
	}

	// Токен еще действует - используем его
	token, err := f.svc.GetValidCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	// Токен истек - ошибка
	f.now = f.now.Add(time.Minute)
	token, err = f.svc.GetValidCredential(context.Background())
	require.Error(t, err)
	assert.Empty(t, token)
}

func TestService_ForceRefresh(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.ForceRefresh(context.Background()), ErrNotLoggedIn)

	f.login(t, 3600)
	f.authn.RefreshFunc = func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
		// refresh token не ротируется
		return &pkgapi.TokenResponse{AccessToken: "access-forced", ExpiresIn: 3600}, nil
	}
	require.NoError(t, f.svc.ForceRefresh(context.Background()))

	session, err := f.svc.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-forced", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
}

func TestService_ConcurrentRefreshIsCoalesced(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1)

	var calls atomic.Int32
	release := make(chan struct{})
	f.authn.RefreshFunc = func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
		calls.Add(1)
		<-release
		return &pkgapi.TokenResponse{AccessToken: "access-2", ExpiresIn: 3600}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = f.svc.GetValidCredential(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, "access-2", tok)
	}
}

func TestService_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t, 3600)
	require.NoError(t, f.svc.Logout(context.Background()))

	_, err := f.svc.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	// Повторный выход не ошибка
	require.NoError(t, f.svc.Logout(context.Background()))
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	f.authn.RegisterFunc = func(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error) {
		return &pkgapi.RegisterResponse{UserID: "u-1"}, nil
	}

	id, err := f.svc.Register(context.Background(), "alice", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	_, err = f.svc.Register(context.Background(), "alice", "short")
	assert.Error(t, err)
	assert.Len(t, f.authn.RegisterCalls(), 1)
}
