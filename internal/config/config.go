// Package config loads and validates the credbroker.yaml file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cberrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/internal/stores"
)

const (
	// DefaultDurationSeconds is used when a get request names no duration.
	DefaultDurationSeconds = 3600
	// DefaultMaxDurationSeconds caps session lifetimes.
	DefaultMaxDurationSeconds = 86400
	// DefaultRecencyWindowDays guards rotation against value reuse.
	DefaultRecencyWindowDays = 90
)

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the credbroker.yaml structure.
type Definition struct {
	Version                int            `yaml:"version"`
	Store                  StoreConfig    `yaml:"store"`
	SessionDir             string         `yaml:"session_dir,omitempty"`
	DefaultDurationSeconds int            `yaml:"default_duration_seconds,omitempty"`
	MaxDurationSeconds     int            `yaml:"max_duration_seconds,omitempty"`
	Rotation               RotationConfig `yaml:"rotation,omitempty"`
}

// StoreConfig names the secret store backend and carries its options.
type StoreConfig struct {
	Backend string                 `yaml:"backend"`
	Options map[string]interface{} `yaml:",inline"`
}

// RotationConfig tunes password generation and the reuse guard.
type RotationConfig struct {
	PasswordLength    int `yaml:"password_length,omitempty"`
	RecencyWindowDays int `yaml:"recency_window_days,omitempty"`
}

// Load reads and parses the credbroker.yaml file, applying defaults.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return cberrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a credbroker.yaml naming the secret store backend",
			}
		}
		return cberrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return cberrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if def.Version != 0 {
		return cberrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your credbroker.yaml file",
		}
	}

	if def.Store.Backend == "" {
		return cberrors.ConfigError{
			Field:      "store.backend",
			Message:    "no secret store backend configured",
			Suggestion: fmt.Sprintf("Set store.backend to one of: %s", strings.Join(stores.Available(), ", ")),
		}
	}

	if def.DefaultDurationSeconds == 0 {
		def.DefaultDurationSeconds = DefaultDurationSeconds
	}
	if def.MaxDurationSeconds == 0 {
		def.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	if def.DefaultDurationSeconds < 0 || def.MaxDurationSeconds < 0 {
		return cberrors.ConfigError{
			Field:      "default_duration_seconds",
			Value:      def.DefaultDurationSeconds,
			Message:    "session durations must be positive",
			Suggestion: "Use whole seconds, e.g. default_duration_seconds: 3600",
		}
	}
	if def.DefaultDurationSeconds > def.MaxDurationSeconds {
		return cberrors.ConfigError{
			Field:      "default_duration_seconds",
			Value:      def.DefaultDurationSeconds,
			Message:    "default session duration exceeds the configured maximum",
			Suggestion: "Lower default_duration_seconds or raise max_duration_seconds",
		}
	}

	if def.Rotation.RecencyWindowDays == 0 {
		def.Rotation.RecencyWindowDays = DefaultRecencyWindowDays
	}
	if def.Rotation.PasswordLength < 0 || def.Rotation.RecencyWindowDays < 0 {
		return cberrors.ConfigError{
			Field:      "rotation",
			Message:    "rotation settings must be positive",
			Suggestion: "Omit the fields to accept the defaults",
		}
	}

	c.Definition = &def
	return nil
}

// DefaultDuration returns the configured default session lifetime.
func (c *Config) DefaultDuration() time.Duration {
	if c.Definition == nil {
		return DefaultDurationSeconds * time.Second
	}
	return time.Duration(c.Definition.DefaultDurationSeconds) * time.Second
}

// MaxDuration returns the configured session lifetime cap.
func (c *Config) MaxDuration() time.Duration {
	if c.Definition == nil {
		return DefaultMaxDurationSeconds * time.Second
	}
	return time.Duration(c.Definition.MaxDurationSeconds) * time.Second
}

// RecencyWindow returns the rotation reuse guard as a duration.
func (c *Config) RecencyWindow() time.Duration {
	days := DefaultRecencyWindowDays
	if c.Definition != nil && c.Definition.Rotation.RecencyWindowDays > 0 {
		days = c.Definition.Rotation.RecencyWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// StoreBackend returns the configured backend name and its options.
func (c *Config) StoreBackend() (string, map[string]interface{}, error) {
	if c.Definition == nil {
		return "", nil, cberrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	return c.Definition.Store.Backend, c.Definition.Store.Options, nil
}
