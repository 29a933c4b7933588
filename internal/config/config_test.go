package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test physics defaults
	if cfg.Physics.MaxPointsPerBlock != 262144 {
		t.Errorf("expected max points per block 262144, got %d", cfg.Physics.MaxPointsPerBlock)
	}
	if cfg.Physics.Workers != 0 {
		t.Errorf("expected workers 0, got %d", cfg.Physics.Workers)
	}

	// Test terrain defaults
	if cfg.Terrain.CellSize != 5.0 {
		t.Errorf("expected cell size 5.0, got %f", cfg.Terrain.CellSize)
	}
	if cfg.Terrain.Watch {
		t.Error("expected watch to be false by default")
	}
	if cfg.Terrain.ReloadInterval != 250*time.Millisecond {
		t.Errorf("expected reload interval 250ms, got %v", cfg.Terrain.ReloadInterval)
	}

	// Test bake defaults
	if cfg.Bake.Enabled() {
		t.Error("expected bake store to be disabled by default")
	}

	// Test telemetry defaults
	if cfg.Telemetry.MetricsAddr != ":9464" {
		t.Errorf("expected metrics addr :9464, got %s", cfg.Telemetry.MetricsAddr)
	}
	if cfg.Telemetry.TraceExporter != "none" {
		t.Errorf("expected trace exporter 'none', got %s", cfg.Telemetry.TraceExporter)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
physics:
  max_points_per_block: 65536
  workers: 4

terrain:
  gat_path: "maps/prontera.gat"
  cell_size: 2.5
  watch: true
  reload_interval: 1s

bake:
  path: "/var/lib/hfsim"
  use_baked: true
  save_on_refresh: true

telemetry:
  metrics_addr: ""
  trace_exporter: "stdout"
  trace_file: "traces.json"

logging:
  level: "debug"
  log_file: "hfsim.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Physics.MaxPointsPerBlock != 65536 {
		t.Errorf("expected max points 65536, got %d", cfg.Physics.MaxPointsPerBlock)
	}
	if cfg.Physics.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Physics.Workers)
	}

	if cfg.Terrain.GATPath != "maps/prontera.gat" {
		t.Errorf("expected gat path maps/prontera.gat, got %s", cfg.Terrain.GATPath)
	}
	if cfg.Terrain.CellSize != 2.5 {
		t.Errorf("expected cell size 2.5, got %f", cfg.Terrain.CellSize)
	}
	if !cfg.Terrain.Watch {
		t.Error("expected watch to be true")
	}
	if cfg.Terrain.ReloadInterval != time.Second {
		t.Errorf("expected reload interval 1s, got %v", cfg.Terrain.ReloadInterval)
	}

	if !cfg.Bake.Enabled() || !cfg.Bake.UseBaked || !cfg.Bake.SaveOnRefresh {
		t.Errorf("unexpected bake config: %+v", cfg.Bake)
	}

	if cfg.Telemetry.MetricsAddr != "" {
		t.Errorf("expected metrics disabled, got %s", cfg.Telemetry.MetricsAddr)
	}
	if cfg.Telemetry.TraceExporter != "stdout" {
		t.Errorf("expected trace exporter stdout, got %s", cfg.Telemetry.TraceExporter)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "hfsim.log" {
		t.Errorf("expected log file 'hfsim.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
physics:
  max_points_per_block: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero budget", func(c *Config) { c.Physics.MaxPointsPerBlock = 0 }, false},
		{"negative workers", func(c *Config) { c.Physics.Workers = -1 }, false},
		{"zero cell size", func(c *Config) { c.Terrain.CellSize = 0 }, false},
		{"stdout exporter", func(c *Config) { c.Telemetry.TraceExporter = "stdout" }, true},
		{"unknown exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }, false},
		{"json log format", func(c *Config) { c.Logging.Format = "json" }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("physics:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name: "gat and watch flags",
			setup: func() {
				*flagGAT = "maps/geffen.gat"
				*flagWatch = true
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Terrain.GATPath != "maps/geffen.gat" {
					t.Errorf("expected gat path maps/geffen.gat, got %s", cfg.Terrain.GATPath)
				}
				if !cfg.Terrain.Watch {
					t.Error("expected watch enabled")
				}
			},
			teardown: func() {
				*flagGAT = ""
				*flagWatch = false
			},
		},
		{
			name: "workers and max points flags",
			setup: func() {
				*flagWorkers = 8
				*flagMaxPoints = 1024
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Physics.Workers != 8 {
					t.Errorf("expected workers 8, got %d", cfg.Physics.Workers)
				}
				if cfg.Physics.MaxPointsPerBlock != 1024 {
					t.Errorf("expected max points 1024, got %d", cfg.Physics.MaxPointsPerBlock)
				}
			},
			teardown: func() {
				*flagWorkers = 0
				*flagMaxPoints = 0
			},
		},
		{
			name:  "metrics addr flag",
			setup: func() { *flagMetricsAddr = "127.0.0.1:9000" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Telemetry.MetricsAddr != "127.0.0.1:9000" {
					t.Errorf("expected metrics addr 127.0.0.1:9000, got %s", cfg.Telemetry.MetricsAddr)
				}
			},
			teardown: func() { *flagMetricsAddr = "" },
		},
		{
			name:  "use baked flag",
			setup: func() { *flagUseBaked = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Bake.UseBaked {
					t.Error("expected use_baked to be true")
				}
			},
			teardown: func() { *flagUseBaked = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
physics:
  max_points_per_block: 4096
  workers: 2
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWorkers = 6
	defer func() {
		*flagConfig = ""
		*flagWorkers = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Workers should come from the flag, not the file
	if cfg.Physics.Workers != 6 {
		t.Errorf("expected workers 6 from flag, got %d", cfg.Physics.Workers)
	}

	// Budget should come from the file since no flag override
	if cfg.Physics.MaxPointsPerBlock != 4096 {
		t.Errorf("expected max points 4096 from file, got %d", cfg.Physics.MaxPointsPerBlock)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hfsim.yaml")

	cfg := Default()
	cfg.Terrain.GATPath = "maps/payon.gat"
	cfg.Physics.MaxPointsPerBlock = 2048
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Terrain.GATPath != "maps/payon.gat" {
		t.Errorf("expected gat path maps/payon.gat, got %s", loaded.Terrain.GATPath)
	}
	if loaded.Physics.MaxPointsPerBlock != 2048 {
		t.Errorf("expected max points 2048, got %d", loaded.Physics.MaxPointsPerBlock)
	}
}
