package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the CLI reads
const EnvPrefix = "SYNQUOT_"

// Config holds the client settings
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	SessionID      string        `yaml:"session_id"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SyncDelay      time.Duration `yaml:"sync_delay"`
	SyncTimeout    time.Duration `yaml:"sync_timeout"`
	MaxHistory     int           `yaml:"max_history"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		SyncDelay:      DefaultSyncDelay,
		SyncTimeout:    DefaultSyncTimeout,
		MaxHistory:     DefaultMaxHistorySize,
	}
}

// DefaultConfigPath returns ~/.config/synquot/config.yaml
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "synquot", "config.yaml")
}

// LoadConfig layers the defaults, the YAML file at path, a .env file in
// the working directory and SYNQUOT_* environment variables, in that
// order. A missing file at the default path is not an error; a missing
// file at an explicit path is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, &ConfigError{Path: path, Err: err}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		LogWarn("failed to read .env: %v", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, &ConfigError{Path: "environment", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	LogDebug("loaded config from %s", path)
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvPrefix + "SESSION_ID"); v != "" {
		c.SessionID = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"SYNC_DELAY", &c.SyncDelay},
		{"SYNC_TIMEOUT", &c.SyncTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(EnvPrefix + d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, d.key, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv(EnvPrefix + "MAX_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_HISTORY: %w", EnvPrefix, err)
		}
		c.MaxHistory = n
	}
	return nil
}

// Validate rejects settings the session cannot run with
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base_url is required")
	case c.RequestTimeout < 0 || c.SyncDelay < 0 || c.SyncTimeout < 0:
		return errors.New("durations must not be negative")
	case c.MaxHistory < 0:
		return errors.New("max_history must not be negative")
	}
	return nil
}

// ClientOptions returns the HTTP client settings
func (c Config) ClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:   c.BaseURL,
		Token:     c.Token,
		SessionID: c.SessionID,
		Timeout:   c.RequestTimeout,
	}
}

// SessionOptions returns the session settings
func (c Config) SessionOptions() SessionOptions {
	return SessionOptions{
		MaxHistory:  c.MaxHistory,
		SyncDelay:   c.SyncDelay,
		SyncTimeout: c.SyncTimeout,
	}
}
