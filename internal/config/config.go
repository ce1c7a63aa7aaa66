// Package config manages schemafire configuration and the .schemafire
// directory structure. It handles loading, saving, and initializing the
// workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	Dir        = ".schemafire"
	ConfigFile = "config"

	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config represents the workspace configuration
type Config struct {
	Backend      string `toml:"backend"`       // bolt or sqlite
	DatabaseFile string `toml:"database_file"` // file name inside .schemafire
	MaxAttempts  int    `toml:"max_attempts"`  // transaction retry ceiling
	path         string // path to .schemafire directory
}

// FindRoot finds the .schemafire directory by walking up from the current
// directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, Dir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a schemafire workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .schemafire directory
func Load() (*Config, error) {
	path, err := FindRoot()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(path, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = path
	cfg.applyDefaults()
	return &cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Path returns the path to the .schemafire directory
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, c.DatabaseFile)
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendBolt
	}
	if c.DatabaseFile == "" {
		c.DatabaseFile = defaultDatabaseFile(c.Backend)
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

func defaultDatabaseFile(backend string) string {
	if backend == BackendSQLite {
		return "schemafire.sqlite"
	}
	return "schemafire.db"
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBolt, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Backend, BackendBolt, BackendSQLite)
	}
}

// Initialize creates a new .schemafire directory with initial configuration
func Initialize(backend string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cwd, Dir)

	// Check if already initialized
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("schemafire workspace already exists")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .schemafire directory: %w", err)
	}

	cfg := &Config{
		Backend:      backend,
		DatabaseFile: defaultDatabaseFile(backend),
		MaxAttempts:  5,
		path:         path,
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		os.RemoveAll(path)
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(path)
		return nil, err
	}

	return cfg, nil
}
