// Package config loads the demo server configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the demo server and its pool.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" json:"addr"`

	// PoolSize is the number of pool workers.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// QueueBound caps queued connections; 0 means unbounded.
	QueueBound int `yaml:"queue_bound" json:"queue_bound"`

	// SubmitTimeout bounds queue admission, e.g. "5s".
	SubmitTimeout string `yaml:"submit_timeout" json:"submit_timeout"`

	// SleepDuration is how long the /sleep route blocks, e.g. "5s".
	SleepDuration string `yaml:"sleep_duration" json:"sleep_duration"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ErrorHandler names the fault strategy applied to task failures,
	// looked up in the handler registry: "log-and-continue" or "fail-fast".
	ErrorHandler string `yaml:"error_handler" json:"error_handler"`
}

// Default returns the default server configuration, mirroring the
// classic demo: four workers, five second sleep route.
func Default() *ServerConfig {
	return &ServerConfig{
		Addr:          "127.0.0.1:6969",
		PoolSize:      4,
		QueueBound:    0,
		SubmitTimeout: "5s",
		SleepDuration: "5s",
		LogLevel:      "info",
		ErrorHandler:  "log-and-continue",
	}
}

// Load reads a configuration file, dispatching on extension. Fields left
// empty keep their defaults.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for consistency.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.QueueBound < 0 {
		return fmt.Errorf("queue_bound must not be negative, got %d", c.QueueBound)
	}
	if _, err := c.ParseSubmitTimeout(); err != nil {
		return fmt.Errorf("invalid submit_timeout: %w", err)
	}
	if _, err := c.ParseSleepDuration(); err != nil {
		return fmt.Errorf("invalid sleep_duration: %w", err)
	}
	return nil
}

// ParseSubmitTimeout parses the submit timeout.
func (c *ServerConfig) ParseSubmitTimeout() (time.Duration, error) {
	if c.SubmitTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.SubmitTimeout)
}

// ParseSleepDuration parses the sleep route duration.
func (c *ServerConfig) ParseSleepDuration() (time.Duration, error) {
	if c.SleepDuration == "" {
		return 0, nil
	}
	return time.ParseDuration(c.SleepDuration)
}
