// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/database"
)

// InitializeDatabases initializes both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. market.db - Ingested market data and computed results
	marketDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/market.db",
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market database: %w", err)
	}
	container.MarketDB = marketDB

	// 2. workflow.db - Execution ledger (executions, stages, checkpoints, DLQ)
	workflowDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/workflow.db",
		Profile: database.ProfileLedger, // Maximum safety for the run ledger
		Name:    "workflow",
	})
	if err != nil {
		marketDB.Close()
		return nil, fmt.Errorf("failed to initialize workflow database: %w", err)
	}
	container.WorkflowDB = workflowDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{marketDB, workflowDB} {
		if err := db.Migrate(); err != nil {
			marketDB.Close()
			workflowDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
