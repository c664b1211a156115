// Package config загружает конфигурацию клиента и сервера: значения по
// умолчанию, YAML файл, переменные окружения и флаги командной строки
// (в порядке возрастания приоритета).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/canvassync/internal/conflict"
	"github.com/iudanet/canvassync/internal/duplicate"
	"github.com/iudanet/canvassync/internal/queue"
	"github.com/iudanet/canvassync/internal/reconcile"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/internal/transport"
	"github.com/iudanet/canvassync/internal/verify"
)

// Переменные окружения
const (
	EnvServerURL       = "CANVASSYNC_SERVER_URL"
	EnvCanvas          = "CANVASSYNC_CANVAS"
	EnvDBPath          = "CANVASSYNC_DB"
	EnvTokenPassphrase = "CANVASSYNC_TOKEN_PASSPHRASE"
	EnvLogLevel        = "CANVASSYNC_LOG_LEVEL"
	EnvListenAddr      = "CANVASSYNC_LISTEN_ADDR"
	EnvServerDB        = "CANVASSYNC_SERVER_DB"
	EnvJWTSecret       = "CANVASSYNC_JWT_SECRET"
)

// MinJWTSecretLength минимальная длина секрета подписи
const MinJWTSecretLength = 32

var (
	// ErrInvalidConfig конфигурация не прошла проверку
	ErrInvalidConfig = errors.New("invalid config")
)

// RetryConfig сериализуемая часть retry.Policy
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      time.Duration `yaml:"jitter"`
}

// Policy политика повторов для retry.Do
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
	}
}

func retryFrom(p retry.Policy) RetryConfig {
	return RetryConfig{
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay,
		MaxDelay:    p.MaxDelay,
		Jitter:      p.Jitter,
	}
}

// TransportConfig таймауты и повторы обоих каналов
type TransportConfig struct {
	SocketRetry   RetryConfig   `yaml:"socket_retry"`
	RESTRetry     RetryConfig   `yaml:"rest_retry"`
	SocketTimeout time.Duration `yaml:"socket_timeout"`
	RESTTimeout   time.Duration `yaml:"rest_timeout"`
}

// Transport конфигурация transport.New
func (t TransportConfig) Transport() transport.Config {
	return transport.Config{
		SocketRetry:   t.SocketRetry.Policy(),
		RESTRetry:     t.RESTRetry.Policy(),
		SocketTimeout: t.SocketTimeout,
		RESTTimeout:   t.RESTTimeout,
	}
}

// ReconcileConfig параметры оркестратора
type ReconcileConfig struct {
	RejectionBackoff      RetryConfig `yaml:"rejection_backoff"`
	MaxRetries            int         `yaml:"max_retries"`
	ResultCacheSize       int         `yaml:"result_cache_size"`
	QueueHistorySize      int         `yaml:"queue_history_size"`
	DisableMergeWriteBack bool        `yaml:"disable_merge_write_back"`
}

// Orchestrator конфигурация reconcile.New
func (r ReconcileConfig) Orchestrator() reconcile.Config {
	return reconcile.Config{
		RejectionBackoff:      r.RejectionBackoff.Policy(),
		MaxRetries:            r.MaxRetries,
		ResultCacheSize:       r.ResultCacheSize,
		DisableMergeWriteBack: r.DisableMergeWriteBack,
	}
}

// ClientConfig параметры клиента
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	CanvasID  string `yaml:"canvas_id"`
	DBPath    string `yaml:"db_path"`
	// TokenPassphrase только из окружения или промпта
	TokenPassphrase string      `yaml:"-"`
	Reconnect       RetryConfig `yaml:"reconnect"`
	BufferSize      int         `yaml:"buffer_size"`
	AutoReconnect   bool        `yaml:"auto_reconnect"`
}

// SocketURL адрес потока событий холста
func (c ClientConfig) SocketURL() string {
	base := strings.TrimRight(c.ServerURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/canvases/" + c.CanvasID + "/ws"
}

// ServerConfig параметры эталонного сервера
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// OperationRetention сколько хранить журнал операций для повторов
	OperationRetention time.Duration `yaml:"operation_retention"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	SendBuffer         int           `yaml:"send_buffer"`
}

// Config полная конфигурация
type Config struct {
	Client    ClientConfig     `yaml:"client"`
	Server    ServerConfig     `yaml:"server"`
	Transport TransportConfig  `yaml:"transport"`
	Reconcile ReconcileConfig  `yaml:"reconcile"`
	Conflict  conflict.Config  `yaml:"conflict"`
	Duplicate duplicate.Config `yaml:"duplicate"`
	Verify    verify.Config    `yaml:"verify"`
	LogLevel  string           `yaml:"log_level"`
}

// Default конфигурация по умолчанию
func Default() Config {
	tr := transport.DefaultConfig()
	rc := reconcile.DefaultConfig()
	return Config{
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			CanvasID:  "default",
			DBPath:    "canvassync-client.db",
			Reconnect: RetryConfig{
				MaxAttempts: 10,
				BaseDelay:   time.Second,
				MaxDelay:    30 * time.Second,
				Jitter:      500 * time.Millisecond,
			},
			BufferSize:    256,
			AutoReconnect: true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			DBPath:          "canvassync-server.db",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
			RateLimit:       300,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,

			OperationRetention: 24 * time.Hour,
			CleanupInterval:    10 * time.Minute,
			SendBuffer:         64,
		},
		Transport: TransportConfig{
			SocketRetry:   retryFrom(tr.SocketRetry),
			RESTRetry:     retryFrom(tr.RESTRetry),
			SocketTimeout: tr.SocketTimeout,
			RESTTimeout:   tr.RESTTimeout,
		},
		Reconcile: ReconcileConfig{
			RejectionBackoff: retryFrom(rc.RejectionBackoff),
			MaxRetries:       rc.MaxRetries,
			ResultCacheSize:  rc.ResultCacheSize,
			QueueHistorySize: queue.DefaultHistorySize,
		},
		Conflict:  conflict.DefaultConfig(),
		Duplicate: duplicate.DefaultConfig(),
		Verify:    verify.DefaultConfig(),
		LogLevel:  "info",
	}
}

// Load читает YAML файл поверх значений по умолчанию и применяет
// переменные окружения. Пустой path пропускает чтение файла.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(lookup)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvServerURL, &c.Client.ServerURL)
	set(EnvCanvas, &c.Client.CanvasID)
	set(EnvDBPath, &c.Client.DBPath)
	set(EnvTokenPassphrase, &c.Client.TokenPassphrase)
	set(EnvLogLevel, &c.LogLevel)
	set(EnvListenAddr, &c.Server.ListenAddr)
	set(EnvServerDB, &c.Server.DBPath)
	set(EnvJWTSecret, &c.Server.JWTSecret)
}

// ValidateClient проверяет параметры, нужные клиенту
func (c Config) ValidateClient() error {
	var errs []error
	if !strings.HasPrefix(c.Client.ServerURL, "http://") && !strings.HasPrefix(c.Client.ServerURL, "https://") {
		errs = append(errs, fmt.Errorf("client.server_url must be an http(s) URL, got %q", c.Client.ServerURL))
	}
	if c.Client.CanvasID == "" {
		errs = append(errs, errors.New("client.canvas_id cannot be empty"))
	}
	if c.Client.DBPath == "" {
		errs = append(errs, errors.New("client.db_path cannot be empty"))
	}
	if c.Transport.SocketTimeout <= 0 || c.Transport.RESTTimeout <= 0 {
		errs = append(errs, errors.New("transport timeouts must be positive"))
	}
	if t := c.Duplicate.Threshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("duplicate.threshold must be in (0, 1], got %v", t))
	}
	if c.Verify.Timeout <= 0 {
		errs = append(errs, errors.New("verify.timeout must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return wrapInvalid(errs)
}

// ValidateServer проверяет параметры, нужные серверу
func (c Config) ValidateServer() error {
	var errs []error
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr cannot be empty"))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, errors.New("server.db_path cannot be empty"))
	}
	if len(c.Server.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("server.jwt_secret must be at least %d characters", MinJWTSecretLength))
	}
	if c.Server.AccessTokenTTL <= 0 || c.Server.RefreshTokenTTL <= c.Server.AccessTokenTTL {
		errs = append(errs, errors.New("server token TTLs must be positive and refresh must outlive access"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("server rate limit must be positive"))
	}
	if c.Server.OperationRetention <= 0 || c.Server.CleanupInterval <= 0 {
		errs = append(errs, errors.New("server operation retention and cleanup interval must be positive"))
	}
	if c.Server.SendBuffer <= 0 {
		errs = append(errs, errors.New("server.send_buffer must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return wrapInvalid(errs)
}

func wrapInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ParseLevel разбирает уровень логирования (debug, info, warn, error)
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger текстовый логгер с уровнем из конфигурации
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
