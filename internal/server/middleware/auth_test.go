package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/server/handlers"
	"github.com/iudanet/canvassync/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func testJWTConfig() handlers.JWTConfig {
	return handlers.JWTConfig{
		Secret:          []byte("test-secret-key-0123456789abcdef"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

// testHandler is a simple handler that checks context values
func testHandler(t *testing.T, expectedUserID, expectedUsername string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		assert.Equal(t, expectedUserID, userID)

		username, ok := handlers.GetUsername(r.Context())
		require.True(t, ok, "username should be in context")
		assert.Equal(t, expectedUsername, username)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtConfig := testJWTConfig()

	token, _, err := jwtConfig.IssueAccess("user123", "testuser")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), jwtConfig)(testHandler(t, "user123", "testuser"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/canvases/board/objects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthMiddleware_BearerIsCaseInsensitive(t *testing.T) {
	jwtConfig := testJWTConfig()
	token, _, err := jwtConfig.IssueAccess("user123", "testuser")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), jwtConfig)(testHandler(t, "user123", "testuser"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	jwtConfig := testJWTConfig()

	expiredConfig := jwtConfig
	expiredConfig.AccessTokenTTL = -time.Minute
	expired, _, err := expiredConfig.IssueAccess("user123", "testuser")
	require.NoError(t, err)

	foreignConfig := jwtConfig
	foreignConfig.Secret = []byte("another-secret-key-0123456789abc")
	foreign, _, err := foreignConfig.IssueAccess("user123", "testuser")
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantMessage string
	}{
		{name: "missing header", header: "", wantMessage: "missing token"},
		{name: "no scheme", header: "sometoken", wantMessage: "invalid token format"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantMessage: "invalid token format"},
		{name: "empty token", header: "Bearer ", wantMessage: "invalid token format"},
		{name: "garbage token", header: "Bearer not.a.jwt", wantMessage: "invalid token"},
		{name: "expired token", header: "Bearer " + expired, wantMessage: "invalid token"},
		{name: "foreign signature", header: "Bearer " + foreign, wantMessage: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})
			handler := AuthMiddleware(setupTestLogger(), jwtConfig)(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called, "next handler must not run")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "unauthorized", resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}
