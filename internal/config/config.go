// Package config loads and validates the daemon's TOML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
// DefaultConfig should be used as the starting point before loading a file
// so every field has a usable value.
type Config struct {
	API       APIConfig       `toml:"api"`
	Database  DatabaseConfig  `toml:"database"`
	Inference InferenceConfig `toml:"inference"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Events    EventsConfig    `toml:"events"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	// Addr is the bind address, e.g. "127.0.0.1:8612".
	Addr string `toml:"addr"`

	// CORSEnabled toggles CORS headers on API responses.
	CORSEnabled bool `toml:"cors_enabled"`

	// CORSAllowOrigins lists origins allowed when CORS is enabled.
	CORSAllowOrigins []string `toml:"cors_allow_origins"`
}

// DatabaseConfig configures the sqlite registry store.
type DatabaseConfig struct {
	// Path is the sqlite database file. The parent directory must exist.
	Path string `toml:"path"`
}

// InferenceConfig configures the local inference backend.
type InferenceConfig struct {
	// Addr is the Ollama base URL.
	Addr string `toml:"addr"`

	// ClassifyModel is the model used for tool classification.
	ClassifyModel string `toml:"classify_model"`
}

// OAuthConfig configures the remote OAuth proxy.
type OAuthConfig struct {
	// ProxyURL is the base URL of the proxy holding client secrets.
	ProxyURL string `toml:"proxy_url"`
}

// EventsConfig configures the event bus heartbeat.
type EventsConfig struct {
	// HeartbeatInterval is how often the sandbox status summary is
	// re-broadcast to subscribers.
	HeartbeatInterval duration `toml:"heartbeat_interval"`
}

// duration lets TOML carry values like "1s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// HeartbeatInterval returns the configured heartbeat as a time.Duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Events.HeartbeatInterval)
}

// DefaultConfig returns a configuration with working defaults for a local
// desktop deployment.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Addr: "127.0.0.1:8612",
		},
		Database: DatabaseConfig{
			Path: "stewardd.db",
		},
		Inference: InferenceConfig{
			Addr:          "http://127.0.0.1:11434",
			ClassifyModel: "qwen2.5:3b",
		},
		OAuth: OAuthConfig{
			ProxyURL: "https://oauth.steward-ai.dev",
		},
		Events: EventsConfig{
			HeartbeatInterval: duration(time.Second),
		},
	}
}

// Load reads the TOML file at path on top of defaults. A missing file is not
// an error: the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot start with.
func (c Config) Validate() error {
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Inference.Addr == "" {
		return fmt.Errorf("inference.addr cannot be empty")
	}
	if c.Inference.ClassifyModel == "" {
		return fmt.Errorf("inference.classify_model cannot be empty")
	}
	if c.OAuth.ProxyURL == "" {
		return fmt.Errorf("oauth.proxy_url cannot be empty")
	}
	if c.HeartbeatInterval() <= 0 {
		return fmt.Errorf("events.heartbeat_interval must be positive")
	}
	return nil
}
