// Package config defines the server configuration and loads it from an
// optional YAML file with environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides: KEVA_MAX_CONNECTIONS=200
// overrides max_connections.
const envPrefix = "KEVA_"

// Config is the server's configuration surface.
type Config struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// Segments is the store's segment count. Must be a power of two.
	Segments int `koanf:"segments"`

	// MaxConnections caps concurrent client connections.
	MaxConnections int `koanf:"max_connections"`

	// AcceptRate caps accepted connections per second. 0 disables the
	// limit.
	AcceptRate int `koanf:"accept_rate"`

	// MaxSimpleStringLength caps inbound simple string lines.
	MaxSimpleStringLength int `koanf:"max_simple_string_length"`

	// IdleTimeout disconnects clients idle for longer. 0 disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// ShutdownTimeout bounds the graceful shutdown wait.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                  "127.0.0.1:6000",
		Segments:              16,
		MaxConnections:        100,
		AcceptRate:            0,
		MaxSimpleStringLength: 1024,
		IdleTimeout:           0,
		ShutdownTimeout:       5 * time.Second,
		LogLevel:              "info",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (when non-empty), then KEVA_-prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return cfg, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}
	if c.Segments <= 0 || c.Segments > 1<<16 || c.Segments&(c.Segments-1) != 0 {
		return fmt.Errorf("config: segments must be a power of two in [1, 65536], got %d", c.Segments)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("config: accept_rate must not be negative, got %d", c.AcceptRate)
	}
	if c.MaxSimpleStringLength <= 0 {
		return fmt.Errorf("config: max_simple_string_length must be positive, got %d", c.MaxSimpleStringLength)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps the configured level to its slog value.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
