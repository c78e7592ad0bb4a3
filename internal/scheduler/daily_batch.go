package scheduler

import (
	"context"
	"fmt"

	"github.com/mgalanis/conveyor/internal/workflow"
	"github.com/rs/zerolog"
)

// DailyBatchJob runs the full pipeline workflow over the configured
// symbol universe.
type DailyBatchJob struct {
	runner  WorkflowRunner
	symbols []string
	log     zerolog.Logger
}

// NewDailyBatchJob creates a new daily batch job
func NewDailyBatchJob(runner WorkflowRunner, symbols []string, log zerolog.Logger) *DailyBatchJob {
	return &DailyBatchJob{
		runner:  runner,
		symbols: symbols,
		log:     log.With().Str("job", "daily_batch").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *DailyBatchJob) Name() string {
	return "daily_batch"
}

// Run starts a daily batch workflow and reports its outcome.
func (j *DailyBatchJob) Run() error {
	if len(j.symbols) == 0 {
		j.log.Warn().Msg("No symbols configured, skipping daily batch")
		return nil
	}

	result, err := j.runner.Run(context.Background(), workflow.RunSpec{
		Type:    workflow.TypeDailyBatch,
		Symbols: j.symbols,
	})
	if err != nil {
		return fmt.Errorf("failed to run daily batch: %w", err)
	}

	j.log.Info().
		Str("workflow_id", result.WorkflowID).
		Str("status", string(result.Status)).
		Int("completed", len(result.Completed)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Msg("Daily batch finished")

	if result.Status == workflow.StatusFailed {
		return fmt.Errorf("daily batch workflow %s failed", result.WorkflowID)
	}
	if result.CompletedWithFailures {
		j.log.Warn().
			Str("workflow_id", result.WorkflowID).
			Strs("symbols", result.Failed).
			Msg("Daily batch completed with failed symbols")
	}

	return nil
}
