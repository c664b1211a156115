package api

// Тела запросов и ответов /api/v1/auth/*. Пароль передается открытым,
// сервер хранит только argon2id хеш.

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type (
	RegisterRequest = Credentials
	LoginRequest    = Credentials
)

type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse выдается на login и refresh. ExpiresIn в секундах.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ErrorResponse тело любого ответа 4xx/5xx; Error машинный код
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
