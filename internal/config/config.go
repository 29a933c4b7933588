// Package config handles simulator configuration loading and management.
package config

import "time"

// DefaultMaxPointsPerBlock bounds the heightfield points processed by one refresh job
// block (512x512).
const DefaultMaxPointsPerBlock = 512 * 512

// Config holds all settings.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Bake      BakeConfig      `yaml:"bake"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PhysicsConfig holds heightfield refresh tuning.
type PhysicsConfig struct {
	// MaxPointsPerBlock trades cancellation latency against per-block scheduling overhead.
	MaxPointsPerBlock int `yaml:"max_points_per_block"`
	Workers           int `yaml:"workers"` // 0 uses GOMAXPROCS
}

// TerrainConfig holds the heightfield source settings.
type TerrainConfig struct {
	GATPath        string        `yaml:"gat_path"`
	CellSize       float32       `yaml:"cell_size"` // World units per GAT cell
	Watch          bool          `yaml:"watch"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// BakeConfig holds the baked heightfield store settings.
type BakeConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	UseBaked      bool   `yaml:"use_baked"`
	SaveOnRefresh bool   `yaml:"save_on_refresh"`
}

// Enabled reports whether a store should be opened at all.
func (b BakeConfig) Enabled() bool {
	return b.InMemory || b.Path != ""
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	MetricsAddr   string `yaml:"metrics_addr"`   // Empty disables the /metrics endpoint
	TraceExporter string `yaml:"trace_exporter"` // "none" or "stdout"
	TraceFile     string `yaml:"trace_file"`     // stdout exporter target; empty means stdout
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // log file encoding: "console" or "json"
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Physics: PhysicsConfig{
			MaxPointsPerBlock: DefaultMaxPointsPerBlock,
			Workers:           0,
		},
		Terrain: TerrainConfig{
			GATPath:        "",
			CellSize:       5.0,
			Watch:          false,
			ReloadInterval: 250 * time.Millisecond,
		},
		Bake: BakeConfig{},
		Telemetry: TelemetryConfig{
			MetricsAddr:   ":9464",
			TraceExporter: "none",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
			Format:  "console",
		},
	}
}
