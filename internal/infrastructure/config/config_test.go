package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8700", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, []string{"terminal-server"}, cfg.Terminal.ServerCommand)
	assert.Equal(t, "follow", cfg.Terminal.DarkMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Terminal.PollInterval.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Terminal.FocusDelay.Std())

	assert.Equal(t, "chrome", cfg.Surface.Driver)
	assert.False(t, cfg.Surface.Headless)
	assert.Equal(t, 3, cfg.Surface.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Surface.BreakerCooldown.Std())

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	t.Setenv(FileEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "0.0.0.0",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"TERMINAL_SERVER":        "node,/opt/webterm/server.js",
		"TERMINAL_DARK_MODE":     "true",
		"TERMINAL_POLL_INTERVAL": "1s",
		"SURFACE_DRIVER":         "sandbox",
		"SURFACE_HEADLESS":       "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_ENABLED":     "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, []string{"node", "/opt/webterm/server.js"}, cfg.Terminal.ServerCommand)
	assert.Equal(t, "true", cfg.Terminal.DarkMode)
	assert.Equal(t, time.Second, cfg.Terminal.PollInterval.Std())
	assert.Equal(t, "sandbox", cfg.Surface.Driver)
	assert.True(t, cfg.Surface.Headless)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("TERMINAL_FOCUS_DELAY", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.NotNil(t, LoadOrDefault())
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.toml")
	content := `
[server]
port = "8800"

[terminal]
server_command = ["node", "server.js"]
font_size = "16"
ready_timeout = "0s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8800", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"node", "server.js"}, cfg.Terminal.ServerCommand)
	assert.Equal(t, "16", cfg.Terminal.FontSize)
	assert.Zero(t, cfg.Terminal.ReadyTimeout.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Terminal.PollInterval.Std())
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.yaml")
	content := `
surface:
  driver: chrome
  chrome_url: ws://127.0.0.1:9222
  headless: true
  breaker_cooldown: 1m
rate_limit:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "chrome", cfg.Surface.Driver)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Surface.ChromeURL)
	assert.Equal(t, time.Minute, cfg.Surface.BreakerCooldown.Std())
	assert.True(t, cfg.Surface.Headless)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "8700", cfg.Server.Port)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.toml"), cfg))

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))
	assert.Error(t, LoadFile(path, cfg))

	path = filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("surface: [driver"), 0o644))
	assert.Error(t, LoadFile(path, cfg))
}
