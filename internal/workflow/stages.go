package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/ingestion"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
)

// stageDef binds a stage name to its work function and its gate.
// Either may be nil: the readiness stage is gate-only, and the
// financial and growth stages have no gate.
type stageDef struct {
	name Stage
	run  func(ctx context.Context, symbol string) error
	gate func(workflowID, symbol string) (*GateResult, error)
}

// symbolOutcome is one symbol's terminal result for one stage.
type symbolOutcome struct {
	symbol string
	status Status
	reason string
	err    error
	abort  bool
}

// stageOutcome aggregates a stage's symbol results.
type stageOutcome struct {
	completed   []string
	failed      map[string]string
	skipped     map[string]string
	aborted     bool
	abortReason string
	paused      bool
	canceled    bool
}

// stageDefs builds the pipeline in declared order. The slice must
// mirror StageOrder; checkpoint resumption indexes into it by stage
// name. The closures capture the run's force flag and fetch mode.
func (o *Orchestrator) stageDefs(spec RunSpec) []stageDef {
	mode := marketdata.FetchModeOnDemand
	if spec.Type == TypeDailyBatch {
		mode = marketdata.FetchModeDailyBatch
	}

	return []stageDef{
		{
			name: StageIngestion,
			run: func(ctx context.Context, symbol string) error {
				_, err := o.ingestion.IngestSymbol(ctx, symbol, ingestion.Options{Mode: mode, Force: spec.Force})
				return err
			},
			gate: o.ingestionGate,
		},
		{
			name: StageIndicators,
			run: func(ctx context.Context, symbol string) error {
				_, err := o.indicators.ComputeAndStore(symbol)
				return err
			},
			gate: o.indicatorGate,
		},
		{
			name: StageFinancialData,
			run: func(ctx context.Context, symbol string) error {
				_, err := o.fundamentals.FetchAndStore(ctx, symbol)
				if err != nil && (errors.Is(err, domain.ErrNoData) || errors.Is(err, domain.ErrUnsupported)) {
					o.log.Info().Str("symbol", symbol).Msg("No fundamental data available, continuing without it")
					return nil
				}
				return err
			},
		},
		{
			name: StageWeeklyAggregation,
			run: func(ctx context.Context, symbol string) error {
				_, err := o.aggregation.AggregateSymbol(ctx, symbol)
				return err
			},
		},
		{
			name: StageGrowthCalculations,
			run: func(ctx context.Context, symbol string) error {
				_, err := o.fundamentals.ComputeAndStoreGrowth(symbol)
				return err
			},
		},
		{
			name: StageSignalReadiness,
			gate: o.readinessGate,
		},
	}
}

func (o *Orchestrator) ingestionGate(workflowID, symbol string) (*GateResult, error) {
	date, err := o.bars.LatestDate(symbol, domain.FrequencyDaily)
	if err != nil {
		return nil, err
	}
	return o.gates.CheckIngestion(workflowID, symbol, date)
}

func (o *Orchestrator) indicatorGate(workflowID, symbol string) (*GateResult, error) {
	date, err := o.bars.LatestDate(symbol, domain.FrequencyDaily)
	if err != nil {
		return nil, err
	}
	return o.gates.CheckIndicators(workflowID, symbol, date)
}

// readinessGate evaluates every signal family and reports the worst
// rejection. Per-signal results are persisted by the gate set; only
// the severest one decides the symbol's fate for this stage.
func (o *Orchestrator) readinessGate(workflowID, symbol string) (*GateResult, error) {
	var worst *GateResult
	for _, signal := range SignalTypes {
		result, err := o.gates.CheckSignalReadiness(workflowID, symbol, signal)
		if err != nil {
			return nil, err
		}
		if result.Passed {
			continue
		}
		if worst == nil || actionSeverity(result.Action) > actionSeverity(worst.Action) {
			worst = result
		}
	}
	if worst != nil {
		return worst, nil
	}
	return &GateResult{Gate: GateSignalReadiness, Passed: true, Verdict: VerdictReady}, nil
}

func actionSeverity(action string) int {
	switch action {
	case ActionFixDataQuality:
		return 2
	case ActionSkip:
		return 1
	default:
		return 0
	}
}

// runStage pushes the eligible symbols through one stage on the worker
// pool. priorStates carries terminal symbol states from an interrupted
// run; those symbols keep their outcome without re-running. The pause
// flag is polled at each dispatch boundary, so in-flight symbols
// always finish before a pause takes effect.
func (o *Orchestrator) runStage(ctx context.Context, workflowID string, def stageDef,
	symbols []string, priorStates map[string]Status, tracker *ProgressTracker) (stageOutcome, error) {

	out := stageOutcome{failed: make(map[string]string), skipped: make(map[string]string)}

	stageID, err := o.executions.StartStage(workflowID, def.name)
	if err != nil {
		return out, err
	}
	tracker.StartStage(def.name, len(symbols))

	var pending []string
	for _, symbol := range symbols {
		switch priorStates[symbol] {
		case StatusCompleted:
			out.completed = append(out.completed, symbol)
			tracker.SymbolCompleted()
		case StatusFailed:
			out.failed[symbol] = "failed in a previous run"
			tracker.SymbolFailed()
		case StatusSkipped:
			out.skipped[symbol] = "skipped in a previous run"
			tracker.SymbolSkipped()
		default:
			pending = append(pending, symbol)
		}
	}

	if len(pending) > 0 {
		workers := o.workers
		if workers > len(pending) {
			workers = len(pending)
		}

		jobs := make(chan string)
		results := make(chan symbolOutcome, len(pending))
		var aborted, pausedFlag atomic.Bool

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for symbol := range jobs {
					res := o.runSymbol(ctx, workflowID, def, symbol, tracker)
					if res.abort {
						aborted.Store(true)
					}
					results <- res
				}
			}()
		}

	dispatch:
		for _, symbol := range pending {
			if aborted.Load() {
				break
			}
			if o.isPaused(workflowID) {
				pausedFlag.Store(true)
				break
			}
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				break dispatch
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
		out.canceled = ctx.Err() != nil

		for res := range results {
			switch res.status {
			case StatusCompleted:
				out.completed = append(out.completed, res.symbol)
			case StatusSkipped:
				out.skipped[res.symbol] = res.reason
			default:
				msg := "unknown failure"
				if res.err != nil {
					msg = res.err.Error()
				}
				out.failed[res.symbol] = msg
				if res.abort && !out.aborted {
					out.aborted = true
					out.abortReason = msg
				}
			}
		}
		out.paused = pausedFlag.Load() && !out.aborted
	}

	status := StatusCompleted
	errMsg := ""
	switch {
	case out.aborted:
		status = StatusFailed
		errMsg = out.abortReason
	case out.canceled:
		status = StatusFailed
		errMsg = fmt.Sprintf("run canceled: %v", ctx.Err())
	case out.paused:
		status = StatusPaused
	}
	if err := o.executions.FinishStage(stageID, status, len(out.completed), len(out.failed), errMsg); err != nil {
		o.log.Warn().Err(err).Str("stage", string(def.name)).Msg("Failed to close stage record")
	}

	o.log.Info().
		Str("workflow_id", workflowID).
		Str("stage", string(def.name)).
		Str("status", string(status)).
		Int("completed", len(out.completed)).
		Int("failed", len(out.failed)).
		Int("skipped", len(out.skipped)).
		Msg("Stage finished")

	return out, nil
}

// runSymbol drives one symbol through one stage: attempt, gate check,
// bounded retries with backoff, and dead-lettering on terminal
// failure. Gate rejections with a RETRY action reuse the retry budget;
// RECOMPUTE rejections retry immediately without backoff.
func (o *Orchestrator) runSymbol(ctx context.Context, workflowID string, def stageDef,
	symbol string, tracker *ProgressTracker) symbolOutcome {

	out := symbolOutcome{symbol: symbol}
	retries := 0

	for {
		o.upsertState(workflowID, symbol, def.name, StatusRunning, retries+1, "", nil)

		gateResult, err := o.attemptSymbol(ctx, workflowID, def, symbol)

		if err == nil && (gateResult == nil || gateResult.Passed) {
			o.upsertState(workflowID, symbol, def.name, StatusCompleted, retries+1, "", nil)
			tracker.SymbolCompleted()
			out.status = StatusCompleted
			return out
		}

		recompute := false
		if err == nil {
			switch gateResult.Action {
			case ActionSkip:
				o.upsertState(workflowID, symbol, def.name, StatusSkipped, retries+1, gateResult.Reason, nil)
				tracker.SymbolSkipped()
				o.log.Info().
					Str("workflow_id", workflowID).
					Str("symbol", symbol).
					Str("stage", string(def.name)).
					Str("reason", gateResult.Reason).
					Msg("Symbol skipped by gate")
				out.status = StatusSkipped
				out.reason = gateResult.Reason
				return out
			case ActionFixDataQuality:
				o.recordFailure(workflowID, symbol, def.name, gateResult.Reason, retries+1, gateResult.Action)
				tracker.SymbolFailed()
				out.status = StatusFailed
				out.err = errors.New(gateResult.Reason)
				out.abort = true
				return out
			case ActionRecompute:
				recompute = true
			}
			err = fmt.Errorf("gate rejected: %s", gateResult.Reason)
		}

		if errors.Is(err, context.Canceled) {
			// An operator abort is not a data problem, keep it out of
			// the dead letter queue.
			o.upsertState(workflowID, symbol, def.name, StatusFailed, retries+1, err.Error(), nil)
			tracker.SymbolFailed()
			out.status = StatusFailed
			out.err = err
			return out
		}

		if !o.policy.ShouldRetry(err, retries) {
			action := ""
			if gateResult != nil {
				action = gateResult.Action
			}
			o.recordFailure(workflowID, symbol, def.name, err.Error(), retries+1, action)
			tracker.SymbolFailed()
			out.status = StatusFailed
			out.err = err
			return out
		}

		delay := o.policy.Delay(retries)
		if recompute {
			delay = 0
		}
		retries++
		tracker.SymbolRetried()
		next := time.Now().Add(delay)
		o.upsertState(workflowID, symbol, def.name, StatusPending, retries, err.Error(), &next)

		o.log.Warn().
			Err(err).
			Str("workflow_id", workflowID).
			Str("symbol", symbol).
			Str("stage", string(def.name)).
			Int("retry", retries).
			Dur("delay", delay).
			Msg("Stage attempt failed, will retry")

		if sleepErr := o.sleeper.Sleep(ctx, delay); sleepErr != nil {
			o.upsertState(workflowID, symbol, def.name, StatusFailed, retries, sleepErr.Error(), nil)
			tracker.SymbolFailed()
			out.status = StatusFailed
			out.err = sleepErr
			return out
		}
	}
}

// attemptSymbol runs the stage function and its gate once. A panic in
// either surfaces as an error so the retry loop stays in control.
func (o *Orchestrator) attemptSymbol(ctx context.Context, workflowID string,
	def stageDef, symbol string) (gateResult *GateResult, err error) {

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().
				Interface("panic", r).
				Str("symbol", symbol).
				Str("stage", string(def.name)).
				Str("stack", string(debug.Stack())).
				Msg("Stage panicked")
			gateResult = nil
			err = fmt.Errorf("stage %s panicked on %s: %v", def.name, symbol, r)
		}
	}()

	if def.run != nil {
		if err := def.run(ctx, symbol); err != nil {
			return nil, err
		}
	}
	if def.gate != nil {
		return def.gate(workflowID, symbol)
	}
	return nil, nil
}

// recordFailure marks the symbol failed and files it in the dead
// letter queue.
func (o *Orchestrator) recordFailure(workflowID, symbol string, stage Stage, errMsg string, attempts int, action string) {
	o.upsertState(workflowID, symbol, stage, StatusFailed, attempts, errMsg, nil)

	payload := map[string]string{"attempts": strconv.Itoa(attempts)}
	if action != "" {
		payload["gate_action"] = action
	}
	if err := o.dlq.Add(workflowID, symbol, stage, errMsg, payload); err != nil {
		o.log.Error().
			Err(err).
			Str("symbol", symbol).
			Str("stage", string(stage)).
			Msg("Failed to record dead letter item")
	}

	if o.eventManager != nil {
		o.eventManager.EmitTyped(events.SymbolFailed, "workflow", &events.SymbolFailedData{
			WorkflowID: workflowID,
			Symbol:     symbol,
			Stage:      string(stage),
			Error:      errMsg,
			Attempts:   attempts,
		})
		o.eventManager.EmitTyped(events.DLQItemAdded, "workflow", &events.DLQItemAddedData{
			WorkflowID: workflowID,
			Symbol:     symbol,
			Stage:      string(stage),
			Error:      errMsg,
		})
	}
}

func (o *Orchestrator) upsertState(workflowID, symbol string, stage Stage, status Status, attempts int, lastError string, nextRetry *time.Time) {
	err := o.executions.UpsertSymbolState(SymbolState{
		WorkflowID:  workflowID,
		Symbol:      symbol,
		Stage:       stage,
		Status:      status,
		Attempts:    attempts,
		LastError:   lastError,
		NextRetryAt: nextRetry,
	})
	if err != nil {
		o.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("stage", string(stage)).
			Msg("Failed to update symbol state")
	}
}
