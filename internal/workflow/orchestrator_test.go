package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/clients"
	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/aggregation"
	"github.com/mgalanis/conveyor/internal/modules/fundamentals"
	"github.com/mgalanis/conveyor/internal/modules/indicators"
	"github.com/mgalanis/conveyor/internal/modules/ingestion"
	"github.com/mgalanis/conveyor/internal/modules/marketdata"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	testingpkg "github.com/mgalanis/conveyor/internal/testing"
)

// workflowSource is a scriptable provider for pipeline tests: canned
// daily bars per symbol, failure budgets, and call counting. The
// worker pool hits it concurrently, so everything sits behind a mutex.
type workflowSource struct {
	mu         sync.Mutex
	bars       map[string][]domain.Bar
	failCount  map[string]int
	alwaysFail map[string]error
	calls      map[string]int
}

func newWorkflowSource() *workflowSource {
	return &workflowSource{
		bars:       make(map[string][]domain.Bar),
		failCount:  make(map[string]int),
		alwaysFail: make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (s *workflowSource) Name() string { return "stub" }

func (s *workflowSource) FetchDailyBars(ctx context.Context, symbol string, size clients.OutputSize) ([]domain.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if err, ok := s.alwaysFail[symbol]; ok {
		return nil, err
	}
	if s.failCount[symbol] > 0 {
		s.failCount[symbol]--
		return nil, domain.ErrProviderUnavailable
	}
	return s.bars[symbol], nil
}

func (s *workflowSource) fetchCalls(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

func (s *workflowSource) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchIncomeStatements(ctx context.Context, symbol string) ([]domain.IncomeStatement, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchBalanceSheets(ctx context.Context, symbol string) ([]domain.BalanceSheet, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchCashFlows(ctx context.Context, symbol string) ([]domain.CashFlowStatement, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchEarnings(ctx context.Context, symbol string) ([]domain.EarningsRecord, error) {
	return nil, domain.ErrUnsupported
}

func (s *workflowSource) FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	return nil, domain.ErrUnsupported
}

// recordingSleeper captures requested backoffs and returns instantly.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

type orchestratorHarness struct {
	orch        *Orchestrator
	source      *workflowSource
	sleeper     *recordingSleeper
	bus         *events.Bus
	bars        *marketdata.BarRepository
	indicators  *indicators.Repository
	ingestion   *ingestion.Service
	executions  *ExecutionRepository
	checkpoints *CheckpointRepository
	dlq         *DLQRepository
	gateResults *GateResultRepository
}

func newOrchestratorHarness(t *testing.T) (*orchestratorHarness, func()) {
	t.Helper()
	log := zerolog.Nop()
	marketDB, cleanupMarket := testingpkg.NewTestDB(t, "market")
	workflowDB, cleanupWorkflow := testingpkg.NewTestDB(t, "workflow")

	source := newWorkflowSource()
	barRepo := marketdata.NewBarRepository(marketDB.Conn(), log)
	writer := marketdata.NewWriter(marketDB.Conn(), log)
	reportRepo := validation.NewReportRepository(marketDB.Conn(), log)
	indicatorRepo := indicators.NewRepository(marketDB.Conn(), log)
	statementRepo := fundamentals.NewStatementRepository(marketDB.Conn(), log)

	ingestionSvc := ingestion.NewService(
		source,
		validation.NewValidator(config.DefaultThresholds().Validation, log),
		writer,
		barRepo,
		reportRepo,
		marketdata.NewAuditRepository(marketDB.Conn(), log),
		log,
	)
	indicatorSvc := indicators.NewService(
		barRepo,
		indicators.NewEngine(config.DefaultThresholds().Indicators, log),
		indicatorRepo,
		log,
	)
	fundamentalsSvc := fundamentals.NewService(
		source,
		statementRepo,
		fundamentals.NewOverviewRepository(marketDB.Conn(), log),
		fundamentals.NewGrowthEngine(statementRepo, log),
		log,
	)
	aggregationSvc := aggregation.NewService(barRepo, writer, log)

	h := &orchestratorHarness{
		source:      source,
		sleeper:     &recordingSleeper{},
		bus:         events.NewBus(log),
		bars:        barRepo,
		indicators:  indicatorRepo,
		ingestion:   ingestionSvc,
		executions:  NewExecutionRepository(workflowDB.Conn(), log),
		checkpoints: NewCheckpointRepository(workflowDB.Conn(), log),
		dlq:         NewDLQRepository(workflowDB.Conn(), log),
		gateResults: NewGateResultRepository(workflowDB.Conn(), log),
	}
	gates := NewGates(barRepo, reportRepo, indicatorRepo, h.gateResults, log)

	h.orch = NewOrchestrator(Deps{
		Executions:   h.executions,
		Checkpoints:  h.checkpoints,
		DLQ:          h.dlq,
		Gates:        gates,
		Bars:         barRepo,
		Ingestion:    ingestionSvc,
		Indicators:   indicatorSvc,
		Fundamentals: fundamentalsSvc,
		Aggregation:  aggregationSvc,
		Events:       events.NewManager(h.bus, log),
		Sleeper:      h.sleeper,
	}, DefaultRetryPolicy(), 2, log)

	return h, func() {
		cleanupWorkflow()
		cleanupMarket()
	}
}

// stateMap indexes a run's symbol states as "symbol/stage" -> status.
func stateMap(t *testing.T, h *orchestratorHarness, workflowID string) map[string]Status {
	t.Helper()
	states, err := h.executions.GetSymbolStates(workflowID)
	require.NoError(t, err)
	out := make(map[string]Status, len(states))
	for _, st := range states {
		out[fmt.Sprintf("%s/%s", st.Symbol, st.Stage)] = st.Status
	}
	return out
}

var barsStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestOrchestrator_RunAllStages(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	h.source.bars["MSFT"] = testingpkg.NewDailyBars("MSFT", barsStart, 252)

	var mu sync.Mutex
	var completions []*events.Event
	h.bus.Subscribe(events.WorkflowCompleted, func(event *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		completions = append(completions, event)
	})

	result, err := h.orch.Run(context.Background(), RunSpec{
		Type:    TypeDailyBatch,
		Symbols: []string{"AAPL", "MSFT"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.False(t, result.CompletedWithFailures)
	assert.Equal(t, []string{"AAPL", "MSFT"}, result.Completed)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Skipped)

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, 2, exec.CompletedSymbols)
	assert.Equal(t, 0, exec.FailedSymbols)
	require.NotNil(t, exec.StartedAt)
	require.NotNil(t, exec.CompletedAt)

	stages, err := h.executions.GetStageExecutions(result.WorkflowID)
	require.NoError(t, err)
	require.Len(t, stages, len(StageOrder))
	for i, st := range stages {
		assert.Equal(t, StageOrder[i], st.Stage)
		assert.Equal(t, StatusCompleted, st.Status)
		assert.Equal(t, 2, st.SymbolsProcessed)
		assert.Equal(t, 0, st.SymbolsFailed)
	}

	cp, err := h.checkpoints.Load(result.WorkflowID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, StageSignalReadiness, cp.Stage)
	assert.Len(t, cp.CompletedSymbols, 2)

	// The pipeline actually ran: bars, indicators and weekly rows exist.
	daily, err := h.bars.CountBars("AAPL", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 252, daily)
	rows, err := h.indicators.CountRows("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 252, rows)
	weekly, err := h.bars.CountBars("AAPL", domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Greater(t, weekly, 0)

	// Per-signal readiness verdicts were recorded for both symbols.
	records, err := h.gateResults.ListForWorkflow(result.WorkflowID)
	require.NoError(t, err)
	readiness := 0
	for _, rec := range records {
		if rec.Stage == StageSignalReadiness {
			readiness++
			assert.True(t, rec.Passed)
		}
	}
	assert.Equal(t, len(SignalTypes)*2, readiness)

	assert.Empty(t, h.sleeper.Delays())
	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	assert.Empty(t, items)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, completions, 1)
	assert.Equal(t, "completed", completions[0].Data["status"])

	_, tracking := h.orch.Progress(result.WorkflowID)
	assert.False(t, tracking, "tracker unregisters once the run ends")
}

func TestOrchestrator_TransientFailureRetries(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	h.source.failCount["AAPL"] = 2

	result, err := h.orch.Run(context.Background(), RunSpec{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"AAPL"}, result.Completed)

	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, h.sleeper.Delays())
	assert.Equal(t, 3, h.source.fetchCalls("AAPL"))

	states := stateMap(t, h, result.WorkflowID)
	assert.Equal(t, StatusCompleted, states["AAPL/ingestion"])

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrchestrator_ExhaustedRetriesDeadLetter(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["GOOD"] = testingpkg.NewDailyBars("GOOD", barsStart, 252)
	h.source.alwaysFail["BAD"] = domain.ErrProviderUnavailable

	var mu sync.Mutex
	failures, deadLetters := 0, 0
	h.bus.Subscribe(events.SymbolFailed, func(event *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		failures++
	})
	h.bus.Subscribe(events.DLQItemAdded, func(event *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		deadLetters++
	})

	result, err := h.orch.Run(context.Background(), RunSpec{
		Type:    TypeDailyBatch,
		Symbols: []string{"GOOD", "BAD"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.CompletedWithFailures)
	assert.Equal(t, []string{"GOOD"}, result.Completed)
	assert.Equal(t, []string{"BAD"}, result.Failed)

	// Only BAD backed off: three retries, then the dead letter queue.
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}, h.sleeper.Delays())
	assert.Equal(t, 4, h.source.fetchCalls("BAD"))

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "BAD", items[0].Symbol)
	assert.Equal(t, StageIngestion, items[0].Stage)
	assert.Equal(t, 1, items[0].FailureCount)
	assert.Equal(t, "4", items[0].Payload["attempts"])
	assert.Contains(t, items[0].LastError, "provider unavailable")

	// The failed symbol never entered later stages.
	states := stateMap(t, h, result.WorkflowID)
	assert.Equal(t, StatusFailed, states["BAD/ingestion"])
	_, ran := states["BAD/indicators"]
	assert.False(t, ran)
	assert.Equal(t, StatusCompleted, states["GOOD/signal_readiness"])

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.CompletedSymbols)
	assert.Equal(t, 1, exec.FailedSymbols)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, deadLetters)
}

func TestOrchestrator_TerminalErrorSkipsRetries(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	// No bars scripted: the provider returns an empty history, which
	// ingestion reports as a no-data terminal error.
	result, err := h.orch.Run(context.Background(), RunSpec{Symbols: []string{"EMPTY"}})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.CompletedWithFailures)
	assert.Equal(t, []string{"EMPTY"}, result.Failed)

	assert.Empty(t, h.sleeper.Delays())
	assert.Equal(t, 1, h.source.fetchCalls("EMPTY"))

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].Payload["attempts"])
	assert.Contains(t, items[0].LastError, "zero bars")
}

func TestOrchestrator_QualityFailureAbortsRun(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	// A third of the batch carries negative closes, enough to push the
	// range check past its critical threshold and fail the report.
	bars := testingpkg.NewDailyBars("DIRTY", barsStart, 60)
	for i := 0; i < 20; i++ {
		bars[i].Close = domain.Float64(-1)
	}
	h.source.bars["DIRTY"] = bars

	result, err := h.orch.Run(context.Background(), RunSpec{Symbols: []string{"DIRTY"}})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.False(t, result.CompletedWithFailures)
	assert.Equal(t, []string{"DIRTY"}, result.Failed)

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "validation report failed")

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ActionFixDataQuality, items[0].Payload["gate_action"])

	stages, err := h.executions.GetStageExecutions(result.WorkflowID)
	require.NoError(t, err)
	require.Len(t, stages, 1, "the run stops at ingestion")
	assert.Equal(t, StatusFailed, stages[0].Status)

	records, err := h.gateResults.ListForWorkflow(result.WorkflowID)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, GateIngestion, records[0].Gate)
	assert.Equal(t, ActionFixDataQuality, records[0].Action)
}

func TestOrchestrator_WarmupSkipCascades(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["FULL"] = testingpkg.NewDailyBars("FULL", barsStart, 252)
	h.source.bars["SHORT"] = testingpkg.NewDailyBars("SHORT", barsStart, 100)

	result, err := h.orch.Run(context.Background(), RunSpec{Symbols: []string{"FULL", "SHORT"}})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.False(t, result.CompletedWithFailures, "a warm-up skip is not a failure")
	assert.Equal(t, []string{"FULL"}, result.Completed)
	assert.Equal(t, []string{"SHORT"}, result.Skipped)
	assert.Empty(t, result.Failed)

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	assert.Empty(t, items)

	// SHORT cleared ingestion, was skipped at the indicator gate, and
	// never entered the stages after it.
	states := stateMap(t, h, result.WorkflowID)
	assert.Equal(t, StatusCompleted, states["SHORT/ingestion"])
	assert.Equal(t, StatusSkipped, states["SHORT/indicators"])
	_, ran := states["SHORT/weekly_aggregation"]
	assert.False(t, ran)

	weekly, err := h.bars.CountBars("SHORT", domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, 0, weekly)
	weekly, err = h.bars.CountBars("FULL", domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Greater(t, weekly, 0)
}

func TestOrchestrator_ResumeSkipsFinishedStages(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	h.source.bars["MSFT"] = testingpkg.NewDailyBars("MSFT", barsStart, 252)

	// Reconstruct a run interrupted right after its ingestion stage.
	ctx := context.Background()
	for _, symbol := range []string{"AAPL", "MSFT"} {
		_, err := h.ingestion.IngestSymbol(ctx, symbol, ingestion.Options{})
		require.NoError(t, err)
	}
	require.NoError(t, h.executions.CreateExecution(&Execution{
		ID: "wf-resume", Type: TypeDailyBatch, Symbols: []string{"AAPL", "MSFT"},
	}))
	require.NoError(t, h.executions.MarkExecutionStarted("wf-resume"))
	require.NoError(t, h.executions.SetExecutionStatus("wf-resume", StatusPaused))
	for _, symbol := range []string{"AAPL", "MSFT"} {
		require.NoError(t, h.executions.UpsertSymbolState(SymbolState{
			WorkflowID: "wf-resume", Symbol: symbol, Stage: StageIngestion,
			Status: StatusCompleted, Attempts: 1,
		}))
	}
	require.NoError(t, h.checkpoints.Save("wf-resume", &CheckpointState{
		Stage:            StageIngestion,
		CompletedSymbols: []string{"AAPL", "MSFT"},
	}))

	result, err := h.orch.Resume(ctx, "wf-resume")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, result.Completed)

	// Ingestion was not re-run: one provider call per symbol, from the
	// seeding above, and no ingestion stage record for this run.
	assert.Equal(t, 1, h.source.fetchCalls("AAPL"))
	assert.Equal(t, 1, h.source.fetchCalls("MSFT"))
	stages, err := h.executions.GetStageExecutions("wf-resume")
	require.NoError(t, err)
	require.Len(t, stages, len(StageOrder)-1)
	assert.Equal(t, StageIndicators, stages[0].Stage)

	// A completed workflow refuses another resume.
	_, err = h.orch.Resume(ctx, "wf-resume")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestOrchestrator_PauseAndResume(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	h.source.bars["MSFT"] = testingpkg.NewDailyBars("MSFT", barsStart, 252)

	// Stage events fire synchronously from the run goroutine, so a
	// pause requested on ingestion completion lands before the next
	// stage dispatches any work.
	h.bus.Subscribe(events.StageCompleted, func(event *events.Event) {
		if event.Data["stage"] == string(StageIngestion) {
			workflowID, _ := event.Data["workflow_id"].(string)
			_ = h.orch.Pause(workflowID)
		}
	})

	result, err := h.orch.Run(context.Background(), RunSpec{
		Type:    TypeDailyBatch,
		Symbols: []string{"AAPL", "MSFT"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, result.Status)
	assert.Empty(t, result.Completed)
	assert.Empty(t, result.Failed)

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, exec.Status)
	assert.Nil(t, exec.CompletedAt)

	stages, err := h.executions.GetStageExecutions(result.WorkflowID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, StatusCompleted, stages[0].Status)
	assert.Equal(t, StageIndicators, stages[1].Stage)
	assert.Equal(t, StatusPaused, stages[1].Status)
	assert.Equal(t, 0, stages[1].SymbolsProcessed)

	result, err = h.orch.Resume(context.Background(), result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, result.Completed)

	// Each symbol was fetched exactly once across both runs.
	assert.Equal(t, 1, h.source.fetchCalls("AAPL"))
	assert.Equal(t, 1, h.source.fetchCalls("MSFT"))
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.orch.Run(ctx, RunSpec{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "run canceled")
}

func TestOrchestrator_RunValidation(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	_, err := h.orch.Run(context.Background(), RunSpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one symbol")

	_, err = h.orch.Run(context.Background(), RunSpec{Symbols: []string{"", ""}})
	require.Error(t, err)

	// Duplicates and blanks collapse before the run starts.
	h.source.bars["AAPL"] = testingpkg.NewDailyBars("AAPL", barsStart, 252)
	result, err := h.orch.Run(context.Background(), RunSpec{Symbols: []string{"AAPL", "AAPL", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, result.Completed)

	exec, err := h.executions.GetExecution(result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.TotalSymbols)
	assert.Equal(t, TypeOnDemand, exec.Type, "untyped runs default to on-demand")
}

func TestOrchestrator_PauseValidation(t *testing.T) {
	h, cleanup := newOrchestratorHarness(t)
	defer cleanup()

	err := h.orch.Pause("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, h.executions.CreateExecution(&Execution{
		ID: "wf-idle", Type: TypeOnDemand, Symbols: []string{"AAPL"},
	}))
	err = h.orch.Pause("wf-idle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only running workflows")

	_, err = h.orch.Resume(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
