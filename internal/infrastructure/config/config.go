package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional TOML or
// YAML file.
const FileEnv = "WEBTERM_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	Terminal  TerminalConfig  `toml:"terminal" yaml:"terminal"`
	Surface   SurfaceConfig   `toml:"surface" yaml:"surface"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8700" toml:"port" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" toml:"host" yaml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" toml:"development" yaml:"development"`
}

// TerminalConfig holds the defaults applied to every terminal buffer.
type TerminalConfig struct {
	// ServerCommand is the terminal-server program plus leading arguments.
	// The port, start directory and shell command are appended per buffer.
	ServerCommand []string `envconfig:"TERMINAL_SERVER" default:"terminal-server" toml:"server_command" yaml:"server_command"`
	Shell         string   `envconfig:"TERMINAL_SHELL" toml:"shell" yaml:"shell"`
	// TemplatePath is the page template; empty selects the built-in page.
	TemplatePath string   `envconfig:"TERMINAL_TEMPLATE" toml:"template_path" yaml:"template_path"`
	AssetsURL    string   `envconfig:"TERMINAL_ASSETS_URL" default:"https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0" toml:"assets_url" yaml:"assets_url"`
	DarkMode     string   `envconfig:"TERMINAL_DARK_MODE" default:"follow" toml:"dark_mode" yaml:"dark_mode"`
	ThemeMode    string   `envconfig:"TERMINAL_THEME_MODE" default:"light" toml:"theme_mode" yaml:"theme_mode"`
	FontSize     string   `envconfig:"TERMINAL_FONT_SIZE" default:"13" toml:"font_size" yaml:"font_size"`
	PollInterval Duration `envconfig:"TERMINAL_POLL_INTERVAL" default:"250ms" toml:"poll_interval" yaml:"poll_interval"`
	FocusDelay   Duration `envconfig:"TERMINAL_FOCUS_DELAY" default:"250ms" toml:"focus_delay" yaml:"focus_delay"`
	ReadyTimeout Duration `envconfig:"TERMINAL_READY_TIMEOUT" default:"5s" toml:"ready_timeout" yaml:"ready_timeout"`
	OutputBytes  int      `envconfig:"TERMINAL_OUTPUT_BYTES" default:"65536" toml:"output_bytes" yaml:"output_bytes"`
}

// SurfaceConfig selects and configures the page renderer.
type SurfaceConfig struct {
	Driver      string   `envconfig:"SURFACE_DRIVER" default:"chrome" toml:"driver" yaml:"driver"`
	ChromeBin   string   `envconfig:"SURFACE_CHROME_BIN" toml:"chrome_bin" yaml:"chrome_bin"`
	ChromeURL   string   `envconfig:"SURFACE_CHROME_URL" toml:"chrome_url" yaml:"chrome_url"`
	Headless    bool     `envconfig:"SURFACE_HEADLESS" default:"false" toml:"headless" yaml:"headless"`
	CallTimeout Duration `envconfig:"SURFACE_CALL_TIMEOUT" default:"2s" toml:"call_timeout" yaml:"call_timeout"`
	// BreakerFailures consecutive surface launch failures make new
	// buffers fail fast for BreakerCooldown.
	BreakerFailures int      `envconfig:"SURFACE_BREAKER_FAILURES" default:"3" toml:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown Duration `envconfig:"SURFACE_BREAKER_COOLDOWN" default:"30s" toml:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" toml:"rps" yaml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled" yaml:"enabled"`
}

// Duration is a time.Duration that decodes from strings like "250ms" in
// both environment variables and TOML files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load loads configuration from environment variables, then overlays the
// file named by WEBTERM_CONFIG when set. Values in the file win.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path := os.Getenv(FileEnv); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadFile overlays the file at path onto cfg. Files ending in .yaml or
// .yml are YAML, anything else TOML. Keys absent from the file leave cfg
// untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8700",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Terminal: TerminalConfig{
			ServerCommand: []string{"terminal-server"},
			AssetsURL:     "https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0",
			DarkMode:      "follow",
			ThemeMode:     "light",
			FontSize:      "13",
			PollInterval:  Duration(250 * time.Millisecond),
			FocusDelay:    Duration(250 * time.Millisecond),
			ReadyTimeout:  Duration(5 * time.Second),
			OutputBytes:   64 * 1024,
		},
		Surface: SurfaceConfig{
			Driver:          "chrome",
			CallTimeout:     Duration(2 * time.Second),
			BreakerFailures: 3,
			BreakerCooldown: Duration(30 * time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
