package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DISPATCH_CONFIG", "DISPATCH_API_URL", "DISPATCH_API_TOKEN", "DISPATCH_SIGN_IN_URL",
		"DISPATCH_CLIENT_TIMEOUT", "DISPATCH_SEARCH_DEBOUNCE", "DISPATCH_LOG_FILE", "DISPATCH_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Zero(t, cfg.ClientTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.APIToken)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "dispatch.yaml", `
api_url: https://dispatch.example.com/api/v1
api_token: file-token
client_timeout: 5s
search_debounce: "150"
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dispatch.example.com/api/v1", cfg.APIURL)
	assert.Equal(t, "file-token", cfg.APIToken)
	assert.Equal(t, 5*time.Second, cfg.ClientTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadTOMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "dispatch.toml", `
api_url = "https://toml.example.com/api/v1"
sign_in_url = "https://toml.example.com/login"
log_file = "/var/log/dispatch.log"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://toml.example.com/api/v1", cfg.APIURL)
	assert.Equal(t, "https://toml.example.com/login", cfg.SignInURL)
	assert.Equal(t, "/var/log/dispatch.log", cfg.LogFile)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "dispatch.yml", "api_url: https://file.example.com\napi_token: file-token\n")
	t.Setenv("DISPATCH_CONFIG", path)
	t.Setenv("DISPATCH_API_URL", "https://env.example.com")
	t.Setenv("DISPATCH_LOG_LEVEL", "warning")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.APIURL)
	assert.Equal(t, "file-token", cfg.APIToken)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "dispatch.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(writeFile(t, "bad.yaml", "client_timeout: soon\n"))
	assert.ErrorContains(t, err, "client_timeout")

	t.Setenv("DISPATCH_SEARCH_DEBOUNCE", "-5")
	_, err = Load("")
	assert.ErrorContains(t, err, "search_debounce")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("lead loaded", "lead_id", "L1")

	assert.Contains(t, stderr.String(), "lead loaded")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, file.String(), `"lead_id":"L1"`)
}

func TestSetupFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, cleanup := SetupFileLogger(path, slog.LevelDebug)
	logger.Debug("search fired", "query", "ab")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"query":"ab"`)
}
