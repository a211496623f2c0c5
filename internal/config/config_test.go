package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api/chat", cfg.Server.ChatPath)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Upstream.APIKeyEnv)
	assert.Equal(t, "gpt-4o-mini", cfg.Upstream.Model)
	assert.InDelta(t, 0.6, cfg.Upstream.Temperature, 1e-9)
	assert.Equal(t, 450, cfg.Upstream.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.False(t, cfg.I18n.Enabled)
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 3000
  chat_path: /chat
upstream:
  model: gpt-4o
  temperature: 0.2
  max_tokens: 200
  timeout: 5s
rate_limit:
  window: 30s
  max_requests: 5
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/chat", cfg.Server.ChatPath)
	assert.Equal(t, "gpt-4o", cfg.Upstream.Model)
	assert.InDelta(t, 0.2, cfg.Upstream.Temperature, 1e-9)
	assert.Equal(t, 200, cfg.Upstream.MaxTokens)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_WindowMSOverridesWindow(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  window: 30s
  window_ms: 1500
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.RateLimit.Window)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "3")
	t.Setenv("UPSTREAM_MODEL", "gpt-4.1-mini")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "gpt-4.1-mini", cfg.Upstream.Model)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero max requests", "rate_limit:\n  max_requests: 0\n"},
		{"negative window", "rate_limit:\n  window: -1s\n"},
		{"temperature out of range", "upstream:\n  temperature: 3\n"},
		{"relative chat path", "server:\n  chat_path: api/chat\n"},
		{"empty model", "upstream:\n  model: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}
