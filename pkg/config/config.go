// Package config provides file and environment configuration for builder-web.
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for builder-web.
type Config struct {
	// Server is the view host listener.
	Server ServerConfig `yaml:"server"`

	// BuilderAPIURL is the base URL of the Builder API, including its
	// version prefix.
	BuilderAPIURL string `yaml:"builder_api_url"`

	// Delays drive notification dismissal and build polling.
	Delays DelayConfig `yaml:"delays"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Fixtures configures the local Builder API stand-in.
	Fixtures FixturesConfig `yaml:"fixtures"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ServerConfig holds view host settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SessionIdleTimeout drops browser sessions that made no request for
	// this long. Zero keeps sessions until shutdown.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// DelayConfig holds the waits used by timer-driven actions.
type DelayConfig struct {
	NotificationDismiss time.Duration `yaml:"notification_dismiss"`
	LogPoll             time.Duration `yaml:"log_poll"`
	BuildRefresh        time.Duration `yaml:"build_refresh"`
	BuildListRefresh    time.Duration `yaml:"build_list_refresh"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FixturesConfig holds settings for the fixture Builder API.
type FixturesConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Secret      string        `yaml:"secret"`
	PageSize    int           `yaml:"page_size"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// Addr returns the view host listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Addr returns the fixture listen address.
func (f FixturesConfig) Addr() string {
	return f.Host + ":" + strconv.Itoa(f.Port)
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			SessionIdleTimeout: 2 * time.Hour,
		},
		BuilderAPIURL: "http://localhost:9636/v1",
		Delays: DelayConfig{
			NotificationDismiss: 5 * time.Second,
			LogPoll:             2 * time.Second,
			BuildRefresh:        5 * time.Second,
			BuildListRefresh:    5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Fixtures: FixturesConfig{
			Host:        "127.0.0.1",
			Port:        9636,
			Secret:      "development-fixture-secret-min-32-chars",
			PageSize:    50,
			TokenExpiry: 24 * time.Hour,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads the YAML file at path, if path is not empty, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults loads defaults and environment overrides without
// validating, useful for testing.
func LoadWithDefaults() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("BUILDER_WEB_HOST", c.Server.Host)
	c.Server.Port = getIntEnv("BUILDER_WEB_PORT", c.Server.Port)
	c.Server.SessionIdleTimeout = getDurationEnv("SESSION_IDLE_TIMEOUT", c.Server.SessionIdleTimeout)
	c.BuilderAPIURL = getEnv("BUILDER_API_URL", c.BuilderAPIURL)

	c.Delays.NotificationDismiss = getDurationEnv("NOTIFICATION_DISMISS", c.Delays.NotificationDismiss)
	c.Delays.LogPoll = getDurationEnv("LOG_POLL_INTERVAL", c.Delays.LogPoll)
	c.Delays.BuildRefresh = getDurationEnv("BUILD_REFRESH_DELAY", c.Delays.BuildRefresh)
	c.Delays.BuildListRefresh = getDurationEnv("BUILD_LIST_REFRESH_DELAY", c.Delays.BuildListRefresh)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Fixtures.Host = getEnv("FIXTURES_HOST", c.Fixtures.Host)
	c.Fixtures.Port = getIntEnv("FIXTURES_PORT", c.Fixtures.Port)
	c.Fixtures.Secret = getEnv("FIXTURES_SECRET", c.Fixtures.Secret)
	c.Fixtures.PageSize = getIntEnv("FIXTURES_PAGE_SIZE", c.Fixtures.PageSize)
	c.Fixtures.TokenExpiry = getDurationEnv("FIXTURES_TOKEN_EXPIRY", c.Fixtures.TokenExpiry)

	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BuilderAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BUILDER_API_URL must be an absolute http(s) URL, got %q", c.BuilderAPIURL))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("BUILDER_WEB_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}

	delays := map[string]time.Duration{
		"NOTIFICATION_DISMISS":     c.Delays.NotificationDismiss,
		"LOG_POLL_INTERVAL":        c.Delays.LogPoll,
		"BUILD_REFRESH_DELAY":      c.Delays.BuildRefresh,
		"BUILD_LIST_REFRESH_DELAY": c.Delays.BuildListRefresh,
	}
	for _, key := range []string{"NOTIFICATION_DISMISS", "LOG_POLL_INTERVAL", "BUILD_REFRESH_DELAY", "BUILD_LIST_REFRESH_DELAY"} {
		if delays[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateFixtures checks the settings the fixture server needs.
func (c *Config) ValidateFixtures() error {
	if len(c.Fixtures.Secret) < 32 {
		return fmt.Errorf("FIXTURES_SECRET must be at least 32 characters")
	}
	if c.Fixtures.Port < 1 || c.Fixtures.Port > 65535 {
		return fmt.Errorf("FIXTURES_PORT must be between 1 and 65535, got %d", c.Fixtures.Port)
	}
	if c.Fixtures.PageSize < 1 {
		return fmt.Errorf("FIXTURES_PAGE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
