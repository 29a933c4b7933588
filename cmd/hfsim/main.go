// Package main is the entry point for the Midgard heightfield simulator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/sim"
	"github.com/Faultbox/midgard-physics/internal/telemetry"
)

// Set at build.
var version = "dev"

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Heightfield Simulator ===", zap.String("version", version))
	logger.Sugar.Debugf("Config: %+v", cfg)

	shutdownTracing, err := telemetry.Init(telemetry.Config{
		ServiceName:    "hfsim",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		TraceFile:      cfg.Telemetry.TraceFile,
	})
	if err != nil {
		logger.Error("failed to init tracing", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("flushing traces failed", zap.Error(err))
		}
	}()

	s, err := sim.New(cfg)
	if err != nil {
		logger.Error("failed to create simulation", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing simulation failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		logger.Error("simulation error", zap.Error(err))
		return
	}

	logger.Info("simulation closed normally")
}
