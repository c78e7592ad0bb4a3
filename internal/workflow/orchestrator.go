package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/aggregation"
	"github.com/mgalanis/conveyor/internal/modules/fundamentals"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/ingestion"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
)

// DefaultWorkers is the symbol-level parallelism within a stage.
const DefaultWorkers = 8

// Deps collects everything the orchestrator drives. Sleeper may be nil
// for real timer waits.
type Deps struct {
	Executions   *ExecutionRepository
	Checkpoints  *CheckpointRepository
	DLQ          *DLQRepository
	Gates        *Gates
	Bars         *marketdata.BarRepository
	Ingestion    *ingestion.Service
	Indicators   *indicators.Service
	Fundamentals *fundamentals.Service
	Aggregation  *aggregation.Service
	Events       *events.Manager
	Sleeper      Sleeper
}

// Orchestrator owns workflow runs: it moves every symbol through the
// staged pipeline, persists the run ledger, retries transient failures
// and dead-letters terminal ones. Stages run serially; within a stage,
// symbols run on a worker pool.
type Orchestrator struct {
	executions   *ExecutionRepository
	checkpoints  *CheckpointRepository
	dlq          *DLQRepository
	gates        *Gates
	bars         *marketdata.BarRepository
	ingestion    *ingestion.Service
	indicators   *indicators.Service
	fundamentals *fundamentals.Service
	aggregation  *aggregation.Service
	eventManager *events.Manager

	policy  RetryPolicy
	sleeper Sleeper
	workers int
	log     zerolog.Logger

	mu       sync.Mutex
	trackers map[string]*ProgressTracker
}

// NewOrchestrator wires the workflow engine.
func NewOrchestrator(deps Deps, policy RetryPolicy, workers int, log zerolog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sleeper := deps.Sleeper
	if sleeper == nil {
		sleeper = NewSleeper()
	}
	return &Orchestrator{
		executions:   deps.Executions,
		checkpoints:  deps.Checkpoints,
		dlq:          deps.DLQ,
		gates:        deps.Gates,
		bars:         deps.Bars,
		ingestion:    deps.Ingestion,
		indicators:   deps.Indicators,
		fundamentals: deps.Fundamentals,
		aggregation:  deps.Aggregation,
		eventManager: deps.Events,
		policy:       policy,
		sleeper:      sleeper,
		workers:      workers,
		log:          log.With().Str("component", "orchestrator").Logger(),
		trackers:     make(map[string]*ProgressTracker),
	}
}

// Run creates a new workflow execution and drives it to a terminal
// state. The call blocks until the run completes, fails, or pauses.
func (o *Orchestrator) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	workflowID, spec, err := o.create(spec)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, workflowID, spec, nil)
}

// StartAsync creates the execution record and launches the run in the
// background. It returns as soon as the execution row exists; callers
// observe the run through Progress and the repositories.
func (o *Orchestrator) StartAsync(spec RunSpec) (string, error) {
	workflowID, spec, err := o.create(spec)
	if err != nil {
		return "", err
	}
	go func() {
		if _, rerr := o.run(context.Background(), workflowID, spec, nil); rerr != nil {
			o.log.Error().Err(rerr).Str("workflow_id", workflowID).Msg("Background workflow run failed")
		}
	}()
	return workflowID, nil
}

func (o *Orchestrator) create(spec RunSpec) (string, RunSpec, error) {
	spec.Symbols = dedupeSymbols(spec.Symbols)
	if len(spec.Symbols) == 0 {
		return "", spec, fmt.Errorf("workflow needs at least one symbol")
	}
	if spec.Type == "" {
		spec.Type = TypeOnDemand
	}

	workflowID := uuid.New().String()
	exec := &Execution{ID: workflowID, Type: spec.Type, Symbols: spec.Symbols}
	if err := o.executions.CreateExecution(exec); err != nil {
		return "", spec, err
	}

	o.log.Info().
		Str("workflow_id", workflowID).
		Str("type", string(spec.Type)).
		Int("symbols", len(spec.Symbols)).
		Bool("force", spec.Force).
		Msg("Workflow created")

	return workflowID, spec, nil
}

// Resume picks an interrupted run back up. The newest checkpoint fixes
// the stage to restart from, and per-symbol states keep already
// finished (stage, symbol) pairs from re-running. Only completed
// workflows refuse to resume.
func (o *Orchestrator) Resume(ctx context.Context, workflowID string) (*RunResult, error) {
	exec, err := o.executions.GetExecution(workflowID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}
	if exec.Status == StatusCompleted {
		return nil, fmt.Errorf("workflow %s already completed", workflowID)
	}

	checkpoint, err := o.checkpoints.Load(workflowID)
	if err != nil {
		return nil, err
	}

	spec := RunSpec{Type: exec.Type, Symbols: exec.Symbols}
	if checkpoint != nil && checkpoint.Extra["force"] == "true" {
		spec.Force = true
	}

	o.log.Info().
		Str("workflow_id", workflowID).
		Str("previous_status", string(exec.Status)).
		Msg("Resuming workflow")

	return o.run(ctx, workflowID, spec, checkpoint)
}

// Pause asks a running workflow to stop at the next dispatch boundary.
// Symbols already in flight finish their current stage first.
func (o *Orchestrator) Pause(workflowID string) error {
	exec, err := o.executions.GetExecution(workflowID)
	if err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("workflow %s not found", workflowID)
	}
	if exec.Status != StatusRunning {
		return fmt.Errorf("workflow %s is %s, only running workflows can be paused", workflowID, exec.Status)
	}
	if err := o.executions.SetExecutionStatus(workflowID, StatusPaused); err != nil {
		return err
	}
	o.log.Info().Str("workflow_id", workflowID).Msg("Workflow pause requested")
	return nil
}

// Progress returns the live counters of a run, or false when the run
// is not currently executing in this process.
func (o *Orchestrator) Progress(workflowID string) (Progress, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tracker, ok := o.trackers[workflowID]
	if !ok {
		return Progress{}, false
	}
	return tracker.Snapshot(), true
}

func (o *Orchestrator) run(ctx context.Context, workflowID string, spec RunSpec, checkpoint *CheckpointState) (result *RunResult, err error) {
	start := time.Now()
	tracker := NewProgressTracker(workflowID)
	o.registerTracker(workflowID, tracker)
	defer o.unregisterTracker(workflowID)

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().
				Interface("panic", r).
				Str("workflow_id", workflowID).
				Str("stack", string(debug.Stack())).
				Msg("Workflow panicked")
			if ferr := o.executions.MarkExecutionFinished(workflowID, StatusFailed, fmt.Sprintf("panic: %v", r), 0, 0); ferr != nil {
				o.log.Error().Err(ferr).Msg("Failed to mark panicked workflow as failed")
			}
			result = nil
			err = fmt.Errorf("workflow %s panicked: %v", workflowID, r)
		}
	}()

	if err := o.executions.MarkExecutionStarted(workflowID); err != nil {
		return nil, err
	}
	if o.eventManager != nil {
		o.eventManager.EmitTyped(events.WorkflowStarted, "workflow", &events.WorkflowStartedData{
			WorkflowID:   workflowID,
			WorkflowType: string(spec.Type),
			TotalSymbols: len(spec.Symbols),
		})
	}

	defs := o.stageDefs(spec)

	eligible := make(map[string]bool, len(spec.Symbols))
	for _, symbol := range spec.Symbols {
		eligible[symbol] = true
	}
	failedSet := make(map[string]string)
	skippedSet := make(map[string]string)

	startIdx := 0
	if checkpoint != nil {
		startIdx = stageIndex(checkpoint.Stage) + 1
		for _, def := range defs[:startIdx] {
			statuses, serr := o.executions.SymbolStatuses(workflowID, def.name)
			if serr != nil {
				return nil, serr
			}
			for symbol, status := range statuses {
				switch status {
				case StatusCompleted:
				case StatusSkipped:
					if eligible[symbol] {
						eligible[symbol] = false
						skippedSet[symbol] = "skipped in a previous run"
					}
				default:
					if eligible[symbol] {
						eligible[symbol] = false
						failedSet[symbol] = "failed in a previous run"
					}
				}
			}
		}
	}

	for i := startIdx; i < len(defs); i++ {
		def := defs[i]

		stageSymbols := orderedEligible(spec.Symbols, eligible)
		if len(stageSymbols) == 0 {
			o.log.Warn().
				Str("workflow_id", workflowID).
				Str("stage", string(def.name)).
				Msg("No eligible symbols remain, ending run early")
			break
		}

		// Terminal states written before an interruption survive into
		// the re-run of this stage.
		priorStates, serr := o.executions.SymbolStatuses(workflowID, def.name)
		if serr != nil {
			return nil, serr
		}

		outcome, serr := o.runStage(ctx, workflowID, def, stageSymbols, priorStates, tracker)
		if serr != nil {
			if ferr := o.executions.MarkExecutionFinished(workflowID, StatusFailed, serr.Error(), 0, len(failedSet)); ferr != nil {
				o.log.Error().Err(ferr).Msg("Failed to mark workflow as failed")
			}
			return nil, serr
		}

		for symbol, msg := range outcome.failed {
			eligible[symbol] = false
			failedSet[symbol] = msg
		}
		for symbol, reason := range outcome.skipped {
			eligible[symbol] = false
			skippedSet[symbol] = reason
		}

		stageStatus := StatusCompleted
		switch {
		case outcome.aborted, outcome.canceled:
			stageStatus = StatusFailed
		case outcome.paused:
			stageStatus = StatusPaused
		}
		if o.eventManager != nil {
			o.eventManager.EmitTyped(events.StageCompleted, "workflow", &events.StageCompletedData{
				WorkflowID: workflowID,
				Stage:      string(def.name),
				Status:     string(stageStatus),
				Processed:  len(outcome.completed),
				Failed:     len(outcome.failed),
			})
		}

		if outcome.aborted {
			return o.finish(workflowID, StatusFailed, outcome.abortReason, spec.Symbols, eligible, failedSet, skippedSet, start), nil
		}
		if outcome.canceled {
			return o.finish(workflowID, StatusFailed, fmt.Sprintf("run canceled: %v", ctx.Err()), spec.Symbols, eligible, failedSet, skippedSet, start), nil
		}
		if outcome.paused {
			if uerr := o.executions.UpdateCounts(workflowID, 0, len(failedSet)); uerr != nil {
				o.log.Warn().Err(uerr).Msg("Failed to update workflow counts")
			}
			o.log.Info().Str("workflow_id", workflowID).Str("stage", string(def.name)).Msg("Workflow paused")
			return o.buildResult(workflowID, StatusPaused, spec.Symbols, eligible, failedSet, skippedSet, start), nil
		}

		cp := &CheckpointState{Stage: def.name, CompletedSymbols: outcome.completed}
		if spec.Force {
			cp.Extra = map[string]string{"force": "true"}
		}
		if cerr := o.checkpoints.Save(workflowID, cp); cerr != nil {
			o.log.Warn().Err(cerr).Str("stage", string(def.name)).Msg("Failed to save checkpoint")
		}
		if uerr := o.executions.UpdateCounts(workflowID, countEligible(eligible), len(failedSet)); uerr != nil {
			o.log.Warn().Err(uerr).Msg("Failed to update workflow counts")
		}
	}

	return o.finish(workflowID, StatusCompleted, "", spec.Symbols, eligible, failedSet, skippedSet, start), nil
}

// finish closes the ledger record, emits the completion event and
// assembles the result.
func (o *Orchestrator) finish(workflowID string, status Status, errMsg string,
	symbols []string, eligible map[string]bool, failedSet, skippedSet map[string]string, start time.Time) *RunResult {

	result := o.buildResult(workflowID, status, symbols, eligible, failedSet, skippedSet, start)

	if ferr := o.executions.MarkExecutionFinished(workflowID, status, errMsg, len(result.Completed), len(result.Failed)); ferr != nil {
		o.log.Error().Err(ferr).Str("workflow_id", workflowID).Msg("Failed to close workflow record")
	}

	eventStatus := string(status)
	if result.CompletedWithFailures {
		eventStatus = "completed_with_failures"
	}
	if o.eventManager != nil {
		o.eventManager.EmitTyped(events.WorkflowCompleted, "workflow", &events.WorkflowCompletedData{
			WorkflowID:      workflowID,
			Status:          eventStatus,
			Completed:       len(result.Completed),
			Failed:          len(result.Failed),
			Skipped:         len(result.Skipped),
			DurationSeconds: result.Duration.Seconds(),
		})
	}

	o.log.Info().
		Str("workflow_id", workflowID).
		Str("status", eventStatus).
		Int("completed", len(result.Completed)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("Workflow finished")

	return result
}

// buildResult orders the outcome lists by the run's symbol order. The
// Completed list is only meaningful for completed runs; paused and
// aborted runs leave undecided symbols out of every list.
func (o *Orchestrator) buildResult(workflowID string, status Status, symbols []string,
	eligible map[string]bool, failedSet, skippedSet map[string]string, start time.Time) *RunResult {

	result := &RunResult{
		WorkflowID: workflowID,
		Status:     status,
		Duration:   time.Since(start),
	}
	for _, symbol := range symbols {
		if _, ok := failedSet[symbol]; ok {
			result.Failed = append(result.Failed, symbol)
			continue
		}
		if _, ok := skippedSet[symbol]; ok {
			result.Skipped = append(result.Skipped, symbol)
			continue
		}
		if status == StatusCompleted && eligible[symbol] {
			result.Completed = append(result.Completed, symbol)
		}
	}
	result.CompletedWithFailures = status == StatusCompleted && len(result.Failed) > 0
	return result
}

func (o *Orchestrator) isPaused(workflowID string) bool {
	exec, err := o.executions.GetExecution(workflowID)
	if err != nil {
		o.log.Warn().Err(err).Str("workflow_id", workflowID).Msg("Failed to poll workflow status")
		return false
	}
	return exec != nil && exec.Status == StatusPaused
}

func (o *Orchestrator) registerTracker(workflowID string, tracker *ProgressTracker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trackers[workflowID] = tracker
}

func (o *Orchestrator) unregisterTracker(workflowID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.trackers, workflowID)
}

func stageIndex(stage Stage) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

func orderedEligible(symbols []string, eligible map[string]bool) []string {
	var out []string
	for _, symbol := range symbols {
		if eligible[symbol] {
			out = append(out, symbol)
		}
	}
	return out
}

func countEligible(eligible map[string]bool) int {
	n := 0
	for _, ok := range eligible {
		if ok {
			n++
		}
	}
	return n
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, symbol := range symbols {
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}
