// Package workflow drives symbols through the staged pipeline and owns
// the workflow ledger: executions, stage records, per-symbol states,
// checkpoints, gate results and the dead letter queue.
package workflow

import "time"

// WorkflowType is how a run was triggered.
type WorkflowType string

const (
	TypeDailyBatch WorkflowType = "daily_batch"
	TypeOnDemand   WorkflowType = "on_demand"
	TypeRecovery   WorkflowType = "recovery"
)

// Status values shared by executions, stage executions and symbol
// states. Skipped applies to symbol states only.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPaused    Status = "paused"
	StatusSkipped   Status = "skipped"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageIngestion          Stage = "ingestion"
	StageIndicators         Stage = "indicators"
	StageFinancialData      Stage = "financial_data"
	StageWeeklyAggregation  Stage = "weekly_aggregation"
	StageGrowthCalculations Stage = "growth_calculations"
	StageSignalReadiness    Stage = "signal_readiness"
)

// StageOrder is the pipeline order. Stages run serially; a stage
// starts only after the previous one completed.
var StageOrder = []Stage{
	StageIngestion,
	StageIndicators,
	StageFinancialData,
	StageWeeklyAggregation,
	StageGrowthCalculations,
	StageSignalReadiness,
}

// Execution is one workflow run as recorded in workflow_executions.
type Execution struct {
	ID               string
	Type             WorkflowType
	Status           Status
	Symbols          []string
	TotalSymbols     int
	CompletedSymbols int
	FailedSymbols    int
	Error            string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// StageExecution is one stage's record within a run.
type StageExecution struct {
	ID               int64
	WorkflowID       string
	Stage            Stage
	Status           Status
	SymbolsProcessed int
	SymbolsFailed    int
	Error            string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// SymbolState tracks one symbol's progress through one stage. It is
// the fine-grained resumption unit: resumed runs skip (stage, symbol)
// pairs already completed.
type SymbolState struct {
	WorkflowID  string
	Symbol      string
	Stage       Stage
	Status      Status
	Attempts    int
	LastError   string
	NextRetryAt *time.Time
	UpdatedAt   time.Time
}

// RunSpec describes a requested workflow run.
type RunSpec struct {
	Type    WorkflowType
	Symbols []string
	// Force is passed through to the ingestion stage; it bypasses only
	// the writer's duplicate-prevention skip.
	Force bool
}

// RunResult summarizes a finished or interrupted run.
type RunResult struct {
	WorkflowID            string
	Status                Status
	CompletedWithFailures bool
	Completed             []string
	Failed                []string
	Skipped               []string
	Duration              time.Duration
}
