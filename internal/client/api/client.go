package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/canvassync/pkg/api"
)

//go:generate moq -out credentials_mock.go . CredentialSource

// CredentialSource выдает токен для заголовка Authorization.
// Пустая строка означает запрос без аутентификации.
type CredentialSource interface {
	GetValidCredential(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient  *http.Client
	credentials CredentialSource
	logger      *slog.Logger
	baseURL     string
}

// Option настройка клиента
type Option func(*Client)

// WithCredentials подключает источник токенов
func WithCredentials(src CredentialSource) Option {
	return func(c *Client) { c.credentials = src }
}

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger задает логгер
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		logger:  slog.Default(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp, false); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login получает пару токенов по логину и паролю
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/token", req, &resp, false); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	req := api.RefreshRequest{RefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", req, &resp, false); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает все refresh token пользователя на сервере
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, true); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false); err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	return nil
}

// CreateObject создает объект на холсте
func (c *Client) CreateObject(ctx context.Context, canvasID string, req api.CreateObjectRequest) (*api.Object, error) {
	var resp api.Object
	if err := c.doRequest(ctx, http.MethodPost, objectsPath(canvasID), req, &resp, true); err != nil {
		return nil, fmt.Errorf("create object failed: %w", err)
	}
	return &resp, nil
}

// GetObject получает объект по id
func (c *Client) GetObject(ctx context.Context, canvasID, objectID string) (*api.Object, error) {
	var resp api.Object
	if err := c.doRequest(ctx, http.MethodGet, objectPath(canvasID, objectID), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	return &resp, nil
}

// UpdateObject заменяет свойства объекта
func (c *Client) UpdateObject(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
	var resp api.Object
	if err := c.doRequest(ctx, http.MethodPut, objectPath(canvasID, objectID), req, &resp, true); err != nil {
		return nil, fmt.Errorf("update object failed: %w", err)
	}
	return &resp, nil
}

// DeleteObject удаляет объект
func (c *Client) DeleteObject(ctx context.Context, canvasID, objectID, operationID string) error {
	path := objectPath(canvasID, objectID)
	if operationID != "" {
		path += "?operation_id=" + url.QueryEscape(operationID)
	}
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("delete object failed: %w", err)
	}
	return nil
}

// GetCanvasObjects возвращает все объекты холста
func (c *Client) GetCanvasObjects(ctx context.Context, canvasID string) ([]api.Object, error) {
	var resp api.ListObjectsResponse
	if err := c.doRequest(ctx, http.MethodGet, objectsPath(canvasID), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("list objects failed: %w", err)
	}
	return resp.Objects, nil
}

func objectsPath(canvasID string) string {
	return "/api/v1/canvases/" + url.PathEscape(canvasID) + "/objects"
}

func objectPath(canvasID, objectID string) string {
	return objectsPath(canvasID) + "/" + url.PathEscape(objectID)
}

// doRequest выполняет HTTP запрос. authenticated добавляет Bearer токен.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, authenticated bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.credentials != nil {
		token, err := c.credentials.GetValidCredential(ctx)
		if err != nil {
			// Без токена запрос уходит неаутентифицированным
			c.logger.Warn("credential unavailable, sending unauthenticated request", "error", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp, respBody)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
