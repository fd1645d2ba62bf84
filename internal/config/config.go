// Package config provides configuration management for FamTree.
//
// Settings come from three layers, later layers winning:
//   - built-in defaults
//   - the YAML config file
//   - FAMTREE_* environment variables, optionally seeded from a .env file
//
// Config file locations (priority order):
//  1. $FAMTREE_CONFIG
//  2. ./famtree.yaml
//  3. ~/.config/famtree/config.yaml
//  4. /etc/famtree/config.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"famtree/internal/gedcom"
)

const (
	DefaultAddr           = ":3000"
	DefaultDatabasePath   = "./famtree.db"
	DefaultMaxImportBytes = 32 << 20
	DefaultDebounce       = 500 * time.Millisecond
)

// Environment overrides
const (
	EnvAddr           = "FAMTREE_ADDR"
	EnvDatabasePath   = "FAMTREE_DB"
	EnvSubmitter      = "FAMTREE_SUBMITTER"
	EnvIncludeLiving  = "FAMTREE_INCLUDE_LIVING"
	EnvIncludeSources = "FAMTREE_INCLUDE_SOURCES"
	EnvMaxImportBytes = "FAMTREE_MAX_IMPORT_BYTES"
	EnvWatchDir       = "FAMTREE_WATCH_DIR"
)

// Load reads .env if present, finds and loads the config file (or defaults
// if none is found) and applies environment overrides
func Load() (*Config, string, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}

	path := FindConfigPath()

	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		loaded, _, err := LoadFromPath(path)
		if err != nil {
			return nil, path, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// LoadDotEnv loads variables from the given .env files. Missing files are
// skipped and variables already set in the environment are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Export.SubmitterName == "" {
		c.Export.SubmitterName = gedcom.DefaultSubmitterName
	}
	if c.Export.IncludeSources == nil {
		include := true
		c.Export.IncludeSources = &include
	}
	if c.Import.MaxBytes <= 0 {
		c.Import.MaxBytes = DefaultMaxImportBytes
	}
	if c.Import.Debounce == nil {
		d := Duration(DefaultDebounce)
		c.Import.Debounce = &d
	}
}

// ApplyEnv overrides file values with any FAMTREE_* variables that are set
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvSubmitter); v != "" {
		c.Export.SubmitterName = v
	}
	if v := os.Getenv(EnvWatchDir); v != "" {
		c.Import.WatchDir = v
	}

	if v := os.Getenv(EnvIncludeLiving); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvIncludeLiving, err)
		}
		c.Export.IncludeLiving = b
	}
	if v := os.Getenv(EnvIncludeSources); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvIncludeSources, err)
		}
		c.Export.IncludeSources = &b
	}
	if v := os.Getenv(EnvMaxImportBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", EnvMaxImportBytes, v)
		}
		c.Import.MaxBytes = n
	}

	return nil
}

// ExportOptions returns the configured GEDCOM export defaults
func (c *Config) ExportOptions() gedcom.ExportOptions {
	opts := gedcom.DefaultExportOptions()
	opts.IncludeLiving = c.Export.IncludeLiving
	if c.Export.IncludeSources != nil {
		opts.IncludeSources = *c.Export.IncludeSources
	}
	if c.Export.SubmitterName != "" {
		opts.SubmitterName = c.Export.SubmitterName
	}
	return opts
}

// DebounceDuration returns the inbox debounce interval
func (c *Config) DebounceDuration() time.Duration {
	if c.Import.Debounce == nil {
		return DefaultDebounce
	}
	return c.Import.Debounce.Duration()
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	opts := c.ExportOptions()
	summary := fmt.Sprintf("Addr: %s, Database: %s\n", c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("Export: submitter=%q living=%v sources=%v\n",
		opts.SubmitterName, opts.IncludeLiving, opts.IncludeSources)
	if c.Import.WatchDir != "" {
		summary += fmt.Sprintf("Import: max_bytes=%d watch_dir=%s", c.Import.MaxBytes, c.Import.WatchDir)
	} else {
		summary += fmt.Sprintf("Import: max_bytes=%d", c.Import.MaxBytes)
	}
	return summary
}
