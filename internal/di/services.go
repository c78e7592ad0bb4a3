// Package di provides dependency injection for service implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/clients/alphavantage"
	"github.com/mgalanis/conveyor/internal/clients/yahoo"
	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/database"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/aggregation"
	"github.com/mgalanis/conveyor/internal/modules/fundamentals"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/ingestion"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	"github.com/mgalanis/conveyor/internal/reliability"
	"github.com/mgalanis/conveyor/internal/workflow"
)

// Per-provider rate limits applied by the fallback chain.
// Yahoo tolerates a couple of requests per second on the chart and quote
// endpoints. Alpha Vantage free tier allows 25 requests per day; one call
// every five seconds keeps bursts from burning the budget while the
// client's own daily counter enforces the hard cap.
const (
	yahooRPS          = 2.0
	yahooBurst        = 4
	alphaVantageRPS   = 0.2
	alphaVantageBurst = 1
)

// InitializeServices creates all services and stores them in the container
// This is the SINGLE SOURCE OF TRUTH for all service creation
// Services are created in dependency order to ensure all dependencies exist
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	thresholds := cfg.Thresholds
	if thresholds == nil {
		thresholds = config.DefaultThresholds()
	}

	// ==========================================
	// STEP 1: Initialize Events
	// ==========================================

	container.Bus = events.NewBus(log)
	container.Events = events.NewManager(container.Bus, log)
	log.Info().Msg("Event bus initialized")

	// ==========================================
	// STEP 2: Initialize Market Data Providers
	// ==========================================

	container.Sources = clients.NewRegistry()
	container.Limiters = clients.NewLimiterRegistry(log)
	container.Breakers = clients.NewBreakerRegistry(log)

	// Yahoo Finance client (bars and quotes, no API key required)
	// Every provider is wrapped so each call carries its own deadline.
	yahooClient := NewTimeoutSourceAdapter(yahoo.NewClient(log), cfg.ProviderTimeout)
	if err := container.Sources.Register(yahooClient); err != nil {
		return fmt.Errorf("failed to register yahoo client: %w", err)
	}
	container.Limiters.Register(yahooClient.Name(), yahooRPS, yahooBurst)
	log.Info().Msg("Yahoo Finance client initialized")

	// Alpha Vantage client (fundamentals, earnings, news)
	// Registered behind Yahoo so the free-tier daily budget is only spent
	// on data Yahoo cannot provide.
	if cfg.AlphaVantageAPIKey != "" {
		avClient := NewTimeoutSourceAdapter(alphavantage.NewClient(cfg.AlphaVantageAPIKey, log), cfg.ProviderTimeout)
		if err := container.Sources.Register(avClient); err != nil {
			return fmt.Errorf("failed to register alphavantage client: %w", err)
		}
		container.Limiters.Register(avClient.Name(), alphaVantageRPS, alphaVantageBurst)
		log.Info().Msg("Alpha Vantage client initialized (25 requests/day budget)")
	} else {
		log.Warn().Msg("Alpha Vantage API key not configured - fundamentals, earnings and news unavailable")
	}

	// Circuit breakers for every registered provider
	for _, name := range container.Sources.Names() {
		container.Breakers.Register(name)
	}

	// Fallback chain in registration order: Yahoo first, Alpha Vantage
	// picks up the operations Yahoo declines
	container.Chain = clients.NewFallbackChain(
		container.Sources.All(),
		container.Limiters,
		container.Breakers,
		log,
	)
	log.Info().Strs("providers", container.Chain.Providers()).Msg("Fallback chain initialized")

	// ==========================================
	// STEP 3: Initialize Pipeline Services
	// ==========================================

	// Ingestion service (fetch, validate, persist daily bars)
	validator := validation.NewValidator(thresholds.Validation, log)
	container.Ingestion = ingestion.NewService(
		container.Chain,
		validator,
		container.BarWriter,
		container.Bars,
		container.Reports,
		container.Audit,
		log,
	)
	log.Info().Msg("Ingestion service initialized")

	// Indicator service (SMA, EMA, RSI, MACD, Bollinger, ATR)
	indicatorEngine := indicators.NewEngine(thresholds.Indicators, log)
	container.Indicators = indicators.NewService(
		container.Bars,
		indicatorEngine,
		container.IndicatorRepo,
		log,
	)
	log.Info().Msg("Indicator service initialized")

	// Fundamentals service (statements, overview, growth metrics)
	growthEngine := fundamentals.NewGrowthEngine(container.Statements, log)
	container.Fundamentals = fundamentals.NewService(
		container.Chain,
		container.Statements,
		container.Overview,
		growthEngine,
		log,
	)
	log.Info().Msg("Fundamentals service initialized")

	// Aggregation service (weekly and monthly rollups)
	container.Aggregation = aggregation.NewService(
		container.Bars,
		container.BarWriter,
		log,
	)
	log.Info().Msg("Aggregation service initialized")

	// ==========================================
	// STEP 4: Initialize Workflow Engine
	// ==========================================

	// Quality gates evaluated after each pipeline stage
	container.Gates = workflow.NewGates(
		container.Bars,
		container.Reports,
		container.IndicatorRepo,
		container.GateResults,
		log,
	)

	// Orchestrator (staged pipeline driver with retry and DLQ)
	container.Orchestrator = workflow.NewOrchestrator(
		workflow.Deps{
			Executions:   container.Executions,
			Checkpoints:  container.Checkpoints,
			DLQ:          container.DLQ,
			Gates:        container.Gates,
			Bars:         container.Bars,
			Ingestion:    container.Ingestion,
			Indicators:   container.Indicators,
			Fundamentals: container.Fundamentals,
			Aggregation:  container.Aggregation,
			Events:       container.Events,
		},
		workflow.RetryPolicy{
			InitialDelay: cfg.Retry.InitialDelay,
			Factor:       cfg.Retry.BackoffFactor,
			MaxDelay:     cfg.Retry.MaxDelay,
			MaxAttempts:  cfg.Retry.MaxAttempts,
		},
		cfg.WorkerCount,
		log,
	)
	log.Info().Int("workers", cfg.WorkerCount).Msg("Workflow orchestrator initialized")

	// ==========================================
	// STEP 5: Initialize Reliability Services
	// ==========================================

	databases := map[string]*database.DB{
		"market":   container.MarketDB,
		"workflow": container.WorkflowDB,
	}

	// Maintenance service (VACUUM, integrity checks, WAL truncation)
	container.Maintenance = reliability.NewMaintenanceService(databases, cfg.DataDir, log)
	log.Info().Msg("Maintenance service initialized")

	// Snapshot backups (only when configured)
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - snapshot backups disabled")
		} else {
			container.Snapshots = reliability.NewSnapshotService(
				s3Client,
				databases,
				cfg.DataDir,
				cfg.Backup.MinBackupsKeep,
				container.Events,
				log,
			)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Snapshot backup service initialized")
		}
	} else {
		log.Debug().Msg("Snapshot backups not enabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}
