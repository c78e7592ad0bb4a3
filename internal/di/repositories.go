// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/modules/fundamentals"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	"github.com/mgalanis/conveyor/internal/workflow"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Bar repository (needs marketDB)
	container.Bars = marketdata.NewBarRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Bar writer (needs marketDB, upserts inside a transaction)
	container.BarWriter = marketdata.NewWriter(
		container.MarketDB.Conn(),
		log,
	)

	// Fetch audit repository (needs marketDB)
	container.Audit = marketdata.NewAuditRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Validation report repository (needs marketDB)
	container.Reports = validation.NewReportRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Indicator repository (needs marketDB)
	container.IndicatorRepo = indicators.NewRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Fundamentals statement repository (needs marketDB)
	container.Statements = fundamentals.NewStatementRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Company overview repository (needs marketDB)
	container.Overview = fundamentals.NewOverviewRepository(
		container.MarketDB.Conn(),
		log,
	)

	// Execution repository (needs workflowDB)
	container.Executions = workflow.NewExecutionRepository(
		container.WorkflowDB.Conn(),
		log,
	)

	// Checkpoint repository (needs workflowDB)
	container.Checkpoints = workflow.NewCheckpointRepository(
		container.WorkflowDB.Conn(),
		log,
	)

	// Dead letter queue repository (needs workflowDB)
	container.DLQ = workflow.NewDLQRepository(
		container.WorkflowDB.Conn(),
		log,
	)

	// Gate result repository (needs workflowDB)
	container.GateResults = workflow.NewGateResultRepository(
		container.WorkflowDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
