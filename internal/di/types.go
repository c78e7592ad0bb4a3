/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server and CLI commands for access to services.
 */
package di

import (
	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/database"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/aggregation"
	"github.com/mgalanis/conveyor/internal/modules/fundamentals"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/ingestion"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	"github.com/mgalanis/conveyor/internal/reliability"
	"github.com/mgalanis/conveyor/internal/scheduler"
	"github.com/mgalanis/conveyor/internal/workflow"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and handed to the HTTP server and
 * CLI commands.
 *
 * Architecture:
 * - Databases: 2-database architecture (market, workflow)
 * - Providers: External market data clients behind a fallback chain
 * - Repositories: Data access layer (bars, reports, indicators, fundamentals, workflow ledger)
 * - Services: Pipeline stages (ingestion, indicators, fundamentals, aggregation)
 * - Workflow: Orchestrator driving symbols through the staged pipeline
 * - Reliability: Database maintenance and snapshot backups
 * - Scheduler: Cron-driven recurring jobs
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases (2-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	MarketDB   *database.DB // Ingested bars, reports, indicators, fundamentals, aggregates
	WorkflowDB *database.DB // Append-only execution ledger (executions, checkpoints, DLQ)

	// Events - in-process pub/sub
	Bus    *events.Bus     // Raw bus handlers subscribe to
	Events *events.Manager // Typed emit helpers used by services

	// Providers - external market data integrations
	Sources  *clients.Registry        // Named provider lookup
	Limiters *clients.LimiterRegistry // Per-provider rate limits
	Breakers *clients.BreakerRegistry // Per-provider circuit breakers
	Chain    *clients.FallbackChain   // Ordered fallback over all providers

	// Repositories - market database
	Bars          *marketdata.BarRepository         // Daily OHLCV bars
	BarWriter     *marketdata.Writer                // Transactional bar upserts
	Audit         *marketdata.AuditRepository       // Provider fetch audit trail
	Reports       *validation.ReportRepository      // Data quality reports
	IndicatorRepo *indicators.Repository            // Computed indicator rows
	Statements    *fundamentals.StatementRepository // Income, balance, cash flow statements
	Overview      *fundamentals.OverviewRepository  // Company overviews and growth metrics

	// Repositories - workflow database
	Executions  *workflow.ExecutionRepository  // Run ledger
	Checkpoints *workflow.CheckpointRepository // Per-stage resume points
	DLQ         *workflow.DLQRepository        // Dead-lettered symbols
	GateResults *workflow.GateResultRepository // Quality gate decisions

	// Services - pipeline stages
	Ingestion    *ingestion.Service    // Fetch, validate, persist bars
	Indicators   *indicators.Service   // Technical indicator computation
	Fundamentals *fundamentals.Service // Statement ingestion and growth analysis
	Aggregation  *aggregation.Service  // Weekly and monthly rollups

	// Workflow engine
	Gates        *workflow.Gates        // Post-stage quality gates
	Orchestrator *workflow.Orchestrator // Staged pipeline driver

	// Reliability
	Maintenance *reliability.MaintenanceService // VACUUM, integrity checks, WAL truncation
	Snapshots   *reliability.SnapshotService    // S3 snapshot backups (nil when disabled)

	// Scheduler - recurring jobs (started by the serve command only)
	Scheduler *scheduler.Scheduler
}

// Close closes the container's databases. The scheduler and HTTP server
// have their own lifecycles and are stopped by their owners. Safe to
// call on a partially wired container.
func (c *Container) Close() {
	if c.WorkflowDB != nil {
		_ = c.WorkflowDB.Close()
	}
	if c.MarketDB != nil {
		_ = c.MarketDB.Close()
	}
}
