// Package config loads halyard client configuration from a YAML or JSON
// file, an optional .env file, and environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	DefaultSessionDir = "~/.halyard/sessions"
	DefaultLogLevel   = "info"
)

// Config holds client settings. Zero values fall back to defaults; the
// access token is deliberately absent here and lives in the session store.
type Config struct {
	// ServerURL is the chat server base URL, e.g. "https://chat.example.com".
	ServerURL string `yaml:"server_url" json:"server_url"`

	// Profile selects the persisted session profile.
	Profile string `yaml:"profile" json:"profile"`

	// SessionDir is where session profiles are stored.
	SessionDir string `yaml:"session_dir" json:"session_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// StreamTimeout bounds one streamed turn, e.g. "300s". Empty uses the
	// client default.
	StreamTimeout string `yaml:"stream_timeout" json:"stream_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Profile:    "default",
		SessionDir: DefaultSessionDir,
		LogLevel:   DefaultLogLevel,
	}
}

// Load reads the configuration file at path (YAML or JSON by extension),
// then applies environment overrides. A missing file is not an error; the
// defaults are used. A .env file in the working directory is loaded first
// when present.
func Load(path string) (*Config, error) {
	// Ignore a missing .env; it is a development convenience.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			if err := parse(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyEnv()

	if cfg.StreamTimeout != "" {
		if _, err := time.ParseDuration(cfg.StreamTimeout); err != nil {
			return nil, fmt.Errorf("invalid stream_timeout: %w", err)
		}
	}
	return cfg, nil
}

func parse(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid config file %s: %w", path, err)
		}
	case ".yml", ".yaml":
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return fmt.Errorf("invalid config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", path)
	}
	return nil
}

// applyEnv overrides file values with HALYARD_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("HALYARD_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("HALYARD_PROFILE"); v != "" {
		c.Profile = v
	}
	if v := os.Getenv("HALYARD_SESSION_DIR"); v != "" {
		c.SessionDir = v
	}
	if v := os.Getenv("HALYARD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("HALYARD_STREAM_TIMEOUT"); v != "" {
		c.StreamTimeout = v
	}
}

// StreamTimeoutDuration returns the parsed stream timeout, or zero when
// unset.
func (c *Config) StreamTimeoutDuration() time.Duration {
	if c.StreamTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.StreamTimeout)
	if err != nil {
		return 0
	}
	return d
}
