package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/models"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValidForClient(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.ValidateClient())
	assert.Equal(t, 0.8, cfg.Duplicate.Threshold)
	assert.Equal(t, 5*time.Second, cfg.Conflict.ConcurrentWindow)
	assert.Equal(t, 3, cfg.Reconcile.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Verify.Timeout)
}

func TestDefault_ServerNeedsSecret(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateServer()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.Server.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: warn
client:
  server_url: https://canvas.example.com
  canvas_id: board-7
transport:
  socket_timeout: 2s
  rest_retry:
    max_attempts: 5
conflict:
  manual_types: [concurrent_edit]
  drift_distance: 250
duplicate:
  threshold: 0.9
reconcile:
  disable_merge_write_back: true
`)

	cfg, err := load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "https://canvas.example.com", cfg.Client.ServerURL)
	assert.Equal(t, "board-7", cfg.Client.CanvasID)
	assert.Equal(t, 2*time.Second, cfg.Transport.SocketTimeout)
	assert.Equal(t, 5, cfg.Transport.RESTRetry.MaxAttempts)
	assert.Equal(t, []models.ConflictType{models.ConflictConcurrentEdit}, cfg.Conflict.ManualTypes)
	assert.Equal(t, 250.0, cfg.Conflict.DriftDistance)
	assert.Equal(t, 0.9, cfg.Duplicate.Threshold)
	assert.True(t, cfg.Reconcile.DisableMergeWriteBack)

	// не заданное в файле остается по умолчанию
	assert.Equal(t, Default().Transport.RESTTimeout, cfg.Transport.RESTTimeout)
	assert.Equal(t, Default().Duplicate.Weights, cfg.Duplicate.Weights)
	assert.Equal(t, "canvassync-client.db", cfg.Client.DBPath)

	tc := cfg.Transport.Transport()
	assert.Equal(t, 5, tc.RESTRetry.MaxAttempts)
	assert.True(t, cfg.Reconcile.Orchestrator().DisableMergeWriteBack)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "client:\n  server_url: http://file:8080\n")

	cfg, err := load(path, envMap(map[string]string{
		EnvServerURL:       "http://env:9090",
		EnvTokenPassphrase: "s3cret",
		EnvJWTSecret:       "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://env:9090", cfg.Client.ServerURL)
	assert.Equal(t, "s3cret", cfg.Client.TokenPassphrase)
	assert.Empty(t, cfg.Server.JWTSecret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeConfig(t, "client: [not, a, map]\n")
	_, err = load(path, noEnv)
	assert.Error(t, err)
}

func TestLoad_PassphraseNeverFromFile(t *testing.T) {
	path := writeConfig(t, "client:\n  token_passphrase: leaked\n")

	cfg, err := load(path, noEnv)
	require.NoError(t, err)
	assert.Empty(t, cfg.Client.TokenPassphrase)
}

func TestValidateClient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad url", mutate: func(c *Config) { c.Client.ServerURL = "ftp://x" }},
		{name: "empty canvas", mutate: func(c *Config) { c.Client.CanvasID = "" }},
		{name: "threshold above one", mutate: func(c *Config) { c.Duplicate.Threshold = 1.5 }},
		{name: "zero timeout", mutate: func(c *Config) { c.Transport.RESTTimeout = 0 }},
		{name: "unknown level", mutate: func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.ValidateClient(), ErrInvalidConfig)
		})
	}
}

func TestClientConfig_SocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{server: "http://localhost:8080", want: "ws://localhost:8080/api/v1/canvases/c1/ws"},
		{server: "https://canvas.example.com/", want: "wss://canvas.example.com/api/v1/canvases/c1/ws"},
	}
	for _, tt := range tests {
		c := ClientConfig{ServerURL: tt.server, CanvasID: "c1"}
		assert.Equal(t, tt.want, c.SocketURL())
	}
}

func TestClientFlags_OnlyChangedApply(t *testing.T) {
	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	flags := ClientFlags(fs)
	require.NoError(t, fs.Parse([]string{"--canvas", "board-9", "--debug", "--config", "/etc/cs.yaml"}))

	cfg := Default()
	cfg.Client.ServerURL = "http://from-file:8080"
	flags.Apply(&cfg)

	assert.Equal(t, "/etc/cs.yaml", flags.ConfigPath)
	assert.Equal(t, "board-9", cfg.Client.CanvasID)
	assert.Equal(t, "http://from-file:8080", cfg.Client.ServerURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestServerFlags_DBGoesToServer(t *testing.T) {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags := ServerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--db", "/var/lib/cs.db", "-a", ":9000"}))

	cfg := Default()
	flags.Apply(&cfg)

	assert.Equal(t, "/var/lib/cs.db", cfg.Server.DBPath)
	assert.Equal(t, "canvassync-client.db", cfg.Client.DBPath)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "object_id", "rect-1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "object_id=rect-1")

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}
