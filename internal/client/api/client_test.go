package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.BaseURL())
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_CreateObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/canvases/c1/objects", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req api.CreateObjectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rectangle", req.ObjectType)
		assert.Equal(t, "obj-1", req.ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.Object{
			ID:         req.ID,
			CanvasID:   "c1",
			ObjectType: req.ObjectType,
			Properties: req.Properties,
			Version:    1,
		})
	}))
	defer server.Close()

	creds := &CredentialSourceMock{
		GetValidCredentialFunc: func(ctx context.Context) (string, error) { return "tok", nil },
	}
	client := NewClient(server.URL, WithCredentials(creds))

	obj, err := client.CreateObject(context.Background(), "c1", api.CreateObjectRequest{
		ID:         "obj-1",
		ObjectType: "rectangle",
		Properties: map[string]any{"x": 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), obj.Version)
	assert.Len(t, creds.GetValidCredentialCalls(), 1)
}

func TestClient_CredentialFailureProceedsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(api.ListObjectsResponse{Objects: []api.Object{{ID: "a"}, {ID: "b"}}})
	}))
	defer server.Close()

	creds := &CredentialSourceMock{
		GetValidCredentialFunc: func(ctx context.Context) (string, error) { return "", errors.New("no session") },
	}
	client := NewClient(server.URL, WithCredentials(creds))

	objs, err := client.GetCanvasObjects(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestClient_LoginSkipsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900})
	}))
	defer server.Close()

	creds := &CredentialSourceMock{}
	client := NewClient(server.URL, WithCredentials(creds))

	resp, err := client.Login(context.Background(), api.LoginRequest{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.Empty(t, creds.GetValidCredentialCalls())
}

func TestClient_DeleteObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/canvases/c1/objects/o1", r.URL.Path)
		assert.Equal(t, "op-1", r.URL.Query().Get("operation_id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL).DeleteObject(context.Background(), "c1", "o1", "op-1"))
}

func TestClient_LogoutSendsBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	creds := &CredentialSourceMock{
		GetValidCredentialFunc: func(ctx context.Context) (string, error) { return "tok", nil },
	}
	require.NoError(t, NewClient(server.URL, WithCredentials(creds)).Logout(context.Background()))
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		retryAfter   string
		status       int
		retryable    bool
		notFound     bool
		unauthorized bool
		clientError  bool
	}{
		{name: "404", status: 404, body: `{"error":"not_found","message":"object not found"}`, notFound: true, clientError: true},
		{name: "401", status: 401, body: `{"error":"unauthorized"}`, unauthorized: true},
		{name: "422", status: 422, body: `{"error":"invalid_object"}`, clientError: true},
		{name: "429", status: 429, body: `slow down`, retryAfter: "2", retryable: true},
		{name: "503", status: 503, body: ``, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL).GetObject(context.Background(), "c1", "o1")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
			assert.Equal(t, tt.retryable, retry.IsRetryable(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.unauthorized, IsUnauthorized(err))
			assert.Equal(t, tt.clientError, IsClientError(err))
			if tt.retryAfter != "" {
				assert.Equal(t, 2*time.Second, apiErr.RetryAfter())
			}
		})
	}
}

func TestClient_NetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).GetObject(context.Background(), "c1", "o1")
	require.Error(t, err)
	assert.True(t, retry.IsRetryable(err))
}
