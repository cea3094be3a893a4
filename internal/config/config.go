package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. HOTSCRAPE_PORT.
const EnvPrefix = "hotscrape"

// FileEnvVar names the environment variable holding the optional YAML
// configuration file path.
const FileEnvVar = "HOTSCRAPE_CONFIG"

// Config holds all configuration for the hotscrape server.
type Config struct {
	// Port is the HTTP server port (default: 8080)
	Port int `yaml:"port" split_words:"true"`
	// LogLevel is the slog level: debug, info, warn, error (default: info)
	LogLevel string `yaml:"log_level" split_words:"true"`
	// MetricsPath is the path scrapes are served on (default: /metrics)
	MetricsPath string `yaml:"metrics_path" split_words:"true"`
	// Namespace prefixes hotscrape's own metrics (default: hotscrape)
	Namespace string `yaml:"namespace" split_words:"true"`
	// TextfileDir is a directory of *.prom files exposed on every scrape (empty to disable)
	TextfileDir string `yaml:"textfile_dir" split_words:"true"`
	// RuntimeStats exposes Go runtime and process statistics (default: true)
	RuntimeStats bool `yaml:"runtime_stats" split_words:"true"`
	// ScrapeTimeout bounds a single collection (0 to disable)
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" split_words:"true"`
	// ShutdownDelay is the pre-stop delay after receiving SIGTERM
	ShutdownDelay time.Duration `yaml:"shutdown_delay" split_words:"true"`
	// ShutdownTimeout is the max time to wait for in-flight requests
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	// DrainImmediately rejects new requests immediately on shutdown
	DrainImmediately bool `yaml:"drain_immediately" split_words:"true"`
	// RequestTimeout is the server-side timeout for all requests
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
	// AdminToken guards the admin endpoints (empty = open access)
	AdminToken string `yaml:"admin_token" split_words:"true"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		MetricsPath:     "/metrics",
		Namespace:       "hotscrape",
		RuntimeStats:    true,
		ScrapeTimeout:   10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RequestTimeout:  time.Minute,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// HOTSCRAPE_CONFIG (if set), then HOTSCRAPE_* environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnvVar))
}

// LoadFile is Load with an explicit file path. An empty path skips the file
// layer; a path that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", c.MetricsPath)
	}

	if c.ScrapeTimeout < 0 {
		return fmt.Errorf("scrape timeout must be non-negative, got %s", c.ScrapeTimeout)
	}

	if c.ShutdownDelay < 0 {
		return fmt.Errorf("shutdown delay must be non-negative, got %s", c.ShutdownDelay)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout must be non-negative, got %s", c.ShutdownTimeout)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be non-negative, got %s", c.RequestTimeout)
	}

	if c.RequestTimeout > 0 && c.ScrapeTimeout > c.RequestTimeout {
		return errors.New("scrape timeout must not exceed request timeout")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	return nil
}
