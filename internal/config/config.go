// Package config provides configuration loading and validation for the
// skill_agent binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/skill-improver/internal/types"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// DefaultPort is the HTTP port used when none is configured.
const DefaultPort = 8080

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, env vars or CLI flags.
type Config struct {
	// Storage
	Store       string `json:"store,omitempty" validate:"omitempty,oneof=memory badger postgres"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	BadgerPath  string `json:"badger_path,omitempty"`  // Badger data directory

	// Server
	Port int `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// Behavior
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	Verbose  bool   `json:"verbose,omitempty"` // Print boxed reports on the CLI

	Improvement *types.ImprovementConfig `json:"improvement,omitempty"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	improvement := types.DefaultImprovementConfig()
	return Config{
		Store:       StoreMemory,
		BadgerPath:  "data/skills",
		Port:        DefaultPort,
		LogLevel:    "info",
		Improvement: &improvement,
	}
}

// LoadConfig loads configuration from a JSON file.
// A partial "improvement" object is laid over the default policy.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	improvement := types.DefaultImprovementConfig()
	cfg := Config{Improvement: &improvement}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if cfg.Improvement == nil {
		// "improvement": null in the file
		cfg.Improvement = &improvement
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	case StoreBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("config error: 'badger_path' is required for the badger store")
		}
	}

	if c.Improvement != nil {
		if err := c.Improvement.Validate(); err != nil {
			return fmt.Errorf("config error: improvement: %w", err)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.BadgerPath == "" {
		result.BadgerPath = defaults.BadgerPath
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	if result.Improvement == nil && defaults.Improvement != nil {
		improvement := *defaults.Improvement
		result.Improvement = &improvement
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ImprovementPolicy returns the improvement policy, or the default when
// none is configured.
func (c *Config) ImprovementPolicy() types.ImprovementConfig {
	if c.Improvement == nil {
		return types.DefaultImprovementConfig()
	}
	return *c.Improvement
}
