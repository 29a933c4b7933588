package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagGAT         = flag.String("gat", "", "Path to the GAT heightfield source")
	flagWatch       = flag.Bool("watch", false, "Reload the GAT file when it changes")
	flagWorkers     = flag.Int("workers", 0, "Refresh job workers")
	flagMaxPoints   = flag.Int("max-points", 0, "Maximum heightfield points per refresh block")
	flagMetricsAddr = flag.String("metrics-addr", "", "Prometheus listen address")
	flagUseBaked    = flag.Bool("use-baked", false, "Use the baked heightfield instead of resampling")
	flagLogFormat   = flag.String("log-format", "", "Log file encoding: console or json")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagGAT != "" {
		cfg.Terrain.GATPath = *flagGAT
	}
	if *flagWatch {
		cfg.Terrain.Watch = true
	}
	if *flagWorkers > 0 {
		cfg.Physics.Workers = *flagWorkers
	}
	if *flagMaxPoints > 0 {
		cfg.Physics.MaxPointsPerBlock = *flagMaxPoints
	}
	if *flagMetricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *flagMetricsAddr
	}
	if *flagUseBaked {
		cfg.Bake.UseBaked = true
	}
	if *flagLogFormat != "" {
		cfg.Logging.Format = *flagLogFormat
	}
}
