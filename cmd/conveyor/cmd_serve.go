package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/di"
	"github.com/mgalanis/conveyor/internal/server"
	"github.com/mgalanis/conveyor/internal/version"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and scheduled jobs",
	Long: `Start the long-running service: the operational HTTP API plus the cron
scheduler that triggers the nightly batch, database maintenance and
snapshot backups.

The process runs until it receives SIGINT or SIGTERM, then shuts down
gracefully: the scheduler finishes in-flight jobs and the HTTP server
drains active requests.`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default $CONVEYOR_PORT or 8090)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	log := newLogger(cfg)
	log.Info().Str("version", version.Version).Msg("Starting Conveyor")

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	// A nil *SnapshotService must stay a nil interface so the backup
	// endpoint reports backups as unconfigured.
	var snapshots server.SnapshotBackupper
	if container.Snapshots != nil {
		snapshots = container.Snapshots
	}

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		MarketDB:    container.MarketDB,
		WorkflowDB:  container.WorkflowDB,
		Runner:      container.Orchestrator,
		Executions:  container.Executions,
		Gates:       container.GateResults,
		DLQ:         container.DLQ,
		Reports:     container.Reports,
		News:        container.Chain,
		Maintenance: container.Maintenance,
		Snapshots:   snapshots,
		Bus:         container.Bus,
	})

	// Start server in goroutine so the scheduler and signal handling
	// run alongside it
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start the cron scheduler (daily batch, maintenance, backups)
	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the scheduler first so no new jobs start while the server
	// drains. Stop blocks until running jobs finish.
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")

	return nil
}
