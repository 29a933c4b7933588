package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the refresh pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Physics.MaxPointsPerBlock <= 0 {
		return fmt.Errorf("%w: physics.max_points_per_block must be positive, got %d",
			ErrInvalidConfig, c.Physics.MaxPointsPerBlock)
	}
	if c.Physics.Workers < 0 {
		return fmt.Errorf("%w: physics.workers must not be negative, got %d", ErrInvalidConfig, c.Physics.Workers)
	}
	if c.Terrain.CellSize <= 0 {
		return fmt.Errorf("%w: terrain.cell_size must be positive, got %v", ErrInvalidConfig, c.Terrain.CellSize)
	}
	switch c.Telemetry.TraceExporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("%w: unknown trace exporter %q", ErrInvalidConfig, c.Telemetry.TraceExporter)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardPhysics")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardPhysics")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-physics")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-physics")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
