// Package main is the entry point for the Conveyor market data pipeline.
//
// The binary exposes one long-running command (serve) and a set of
// one-shot operational commands (run, resume, dlq, backup). Workflow
// summaries are written to stdout; structured logs go to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/version"
	"github.com/mgalanis/conveyor/pkg/logger"
)

// Global flags applied before any command runs
var (
	flagDataDir  string
	flagLogLevel string
	flagPretty   bool
)

// rootCmd is the base command for the Conveyor CLI
var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Market data ingestion and computation pipeline",
	Long: `Conveyor ingests daily market data from external providers, validates
and cleans it, computes technical indicators and fundamental growth
metrics, and rolls daily bars up into weekly and monthly timeframes.

Runs are orchestrated as resumable workflows with per-symbol retry,
quality gates between stages and a dead letter queue for symbols that
exhaust their attempts.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default $CONVEYOR_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "Human-readable log output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration and applies global
// flag overrides. The data-dir flag is exported before loading because
// config.Load resolves and creates the directory.
func loadConfig() (*config.Config, error) {
	if flagDataDir != "" {
		os.Setenv("CONVEYOR_DATA_DIR", flagDataDir)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	return cfg, nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) zerolog.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: flagPretty || cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	return log
}
