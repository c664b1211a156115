package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/canvassync/internal/crypto"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
	"github.com/iudanet/canvassync/internal/validation"
	"github.com/iudanet/canvassync/pkg/api"
)

// authError отказ, который уходит клиенту как есть. Все прочие ошибки
// превращаются в 500 без подробностей.
type authError struct {
	status  int
	message string
}

func (e *authError) Error() string { return e.message }

func reject(status int, message string) error {
	return &authError{status: status, message: message}
}

var errBadCredentials = reject(http.StatusUnauthorized, "invalid credentials")

// AuthHandler регистрация, выдача и ротация токенов
type AuthHandler struct {
	responder
	users     storage.UserStorage
	tokens    storage.TokenStorage
	jwt       JWTConfig
	keyParams crypto.KeyParams
	now       func() time.Time
}

func NewAuthHandler(logger *slog.Logger, users storage.UserStorage, tokens storage.TokenStorage, jwt JWTConfig) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		responder: responder{logger: logger},
		users:     users,
		tokens:    tokens,
		jwt:       jwt,
		keyParams: crypto.DefaultKeyParams,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetKeyParams меняет параметры Argon2id для новых паролей
func (h *AuthHandler) SetKeyParams(p crypto.KeyParams) {
	h.keyParams = p
}

// reply отправляет ответ или ошибку; op попадает в лог
func (h *AuthHandler) reply(ctx context.Context, w http.ResponseWriter, op string, resp any, status int, err error) {
	if err == nil {
		h.sendJSON(w, resp, status)
		return
	}
	var ae *authError
	if errors.As(err, &ae) {
		h.logger.WarnContext(ctx, op+" rejected", slog.String("reason", ae.message))
		h.sendError(w, ae.message, ae.status)
		return
	}
	h.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
	h.sendError(w, "internal server error", http.StatusInternalServerError)
}

// Register POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := h.decode(r, &req); err != nil {
		h.reply(r.Context(), w, "register", nil, 0, reject(http.StatusBadRequest, err.Error()))
		return
	}
	resp, err := h.register(r.Context(), req)
	h.reply(r.Context(), w, "register", resp, http.StatusCreated, err)
}

func (h *AuthHandler) register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	if err := validation.ValidateUsername(req.Username); err != nil {
		return nil, reject(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, reject(http.StatusBadRequest, err.Error())
	}

	hash, err := crypto.HashPassword(req.Password, h.keyParams)
	if err != nil {
		return nil, err
	}

	now := h.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, reject(http.StatusConflict, "username already taken")
		}
		return nil, err
	}

	h.logger.InfoContext(ctx, "user registered", slog.String("username", user.Username), slog.String("user_id", user.ID))
	return &api.RegisterResponse{UserID: user.ID, Message: "User registered successfully"}, nil
}

// Login POST /api/v1/auth/token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := h.decode(r, &req); err != nil {
		h.reply(r.Context(), w, "login", nil, 0, reject(http.StatusBadRequest, err.Error()))
		return
	}
	resp, err := h.login(r.Context(), req)
	h.reply(r.Context(), w, "login", resp, http.StatusOK, err)
}

func (h *AuthHandler) login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, reject(http.StatusBadRequest, "username and password are required")
	}

	user, err := h.users.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if crypto.VerifyPassword(req.Password, user.PasswordHash) != nil {
		return nil, errBadCredentials
	}

	resp, err := h.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "user logged in", slog.String("username", user.Username), slog.String("user_id", user.ID))
	return resp, nil
}

// Refresh POST /api/v1/auth/refresh. Refresh token одноразовый: старый
// удаляется до выдачи новой пары, даже если он уже истек.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := h.decode(r, &req); err != nil {
		h.reply(r.Context(), w, "refresh", nil, 0, reject(http.StatusBadRequest, err.Error()))
		return
	}
	resp, err := h.refresh(r.Context(), req.RefreshToken)
	h.reply(r.Context(), w, "refresh", resp, http.StatusOK, err)
}

func (h *AuthHandler) refresh(ctx context.Context, raw string) (*api.TokenResponse, error) {
	if raw == "" {
		return nil, reject(http.StatusUnauthorized, "refresh token is required")
	}

	hash := crypto.HashToken(raw)
	stored, err := h.tokens.GetRefreshToken(ctx, hash)
	if errors.Is(err, storage.ErrTokenNotFound) {
		return nil, reject(http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, err
	}

	switch err := h.tokens.DeleteRefreshToken(ctx, hash); {
	case errors.Is(err, storage.ErrTokenNotFound):
		// параллельный refresh успел первым
		return nil, reject(http.StatusUnauthorized, "invalid refresh token")
	case err != nil:
		h.logger.WarnContext(ctx, "failed to delete used refresh token", slog.Any("error", err))
	}

	if h.now().After(stored.ExpiresAt) {
		return nil, reject(http.StatusUnauthorized, "refresh token expired")
	}

	user, err := h.users.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("owner of refresh token: %w", err)
	}
	return h.issueTokens(ctx, user)
}

// Logout POST /api/v1/auth/logout, за AuthMiddleware. Отзывает все
// refresh token пользователя.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := GetUserID(ctx)
	if !ok {
		h.reply(ctx, w, "logout", nil, 0, reject(http.StatusUnauthorized, "authentication required"))
		return
	}

	n, err := h.tokens.DeleteUserTokens(ctx, userID)
	if err != nil {
		h.reply(ctx, w, "logout", nil, 0, err)
		return
	}
	h.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID), slog.Int("tokens_deleted", n))
	w.WriteHeader(http.StatusNoContent)
}

// issueTokens выдает пару токенов; в базе остается только хеш refresh token
func (h *AuthHandler) issueTokens(ctx context.Context, user *models.User) (*api.TokenResponse, error) {
	access, expiresIn, err := h.jwt.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := h.jwt.IssueRefresh()
	if err != nil {
		return nil, err
	}

	err = h.tokens.SaveRefreshToken(ctx, &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refresh),
		CreatedAt: h.now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &api.TokenResponse{AccessToken: access, RefreshToken: refresh, ExpiresIn: expiresIn}, nil
}
