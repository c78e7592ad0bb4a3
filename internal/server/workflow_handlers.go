package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/workflow"
)

const defaultListLimit = 50

// WorkflowHandlers serves the workflow and dead letter queue endpoints.
type WorkflowHandlers struct {
	runner     WorkflowRunner
	executions *workflow.ExecutionRepository
	gates      *workflow.GateResultRepository
	dlq        *workflow.DLQRepository
	log        zerolog.Logger
}

// NewWorkflowHandlers creates workflow handlers.
func NewWorkflowHandlers(runner WorkflowRunner, executions *workflow.ExecutionRepository,
	gates *workflow.GateResultRepository, dlq *workflow.DLQRepository, log zerolog.Logger) *WorkflowHandlers {
	return &WorkflowHandlers{
		runner:     runner,
		executions: executions,
		gates:      gates,
		dlq:        dlq,
		log:        log.With().Str("component", "workflow_handlers").Logger(),
	}
}

// ExecutionResponse is the JSON shape of one workflow execution.
type ExecutionResponse struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Symbols          []string   `json:"symbols"`
	TotalSymbols     int        `json:"total_symbols"`
	CompletedSymbols int        `json:"completed_symbols"`
	FailedSymbols    int        `json:"failed_symbols"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// StageResponse is the JSON shape of one stage execution.
type StageResponse struct {
	Stage            string     `json:"stage"`
	Status           string     `json:"status"`
	SymbolsProcessed int        `json:"symbols_processed"`
	SymbolsFailed    int        `json:"symbols_failed"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SymbolStateResponse is the JSON shape of one per-symbol stage state.
type SymbolStateResponse struct {
	Symbol      string     `json:"symbol"`
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GateResponse is the JSON shape of one persisted gate outcome.
type GateResponse struct {
	Symbol       string   `json:"symbol"`
	Stage        string   `json:"stage"`
	Gate         string   `json:"gate"`
	Passed       bool     `json:"passed"`
	Reason       string   `json:"reason,omitempty"`
	Action       string   `json:"action"`
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// WorkflowDetail is the response shape of GET /api/workflows/{id}.
type WorkflowDetail struct {
	Execution    ExecutionResponse     `json:"execution"`
	Stages       []StageResponse       `json:"stages"`
	SymbolStates []SymbolStateResponse `json:"symbol_states"`
	GateResults  []GateResponse        `json:"gate_results"`
}

// DLQItemResponse is the JSON shape of one dead letter item.
type DLQItemResponse struct {
	ID           int64     `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	Symbol       string    `json:"symbol"`
	Stage        string    `json:"stage"`
	FailureCount int       `json:"failure_count"`
	FirstError   string    `json:"first_error,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HandleList returns recent workflow executions, newest first.
// GET /api/workflows
func (h *WorkflowHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	execs, err := h.executions.ListExecutions(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list workflows")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	responses := make([]ExecutionResponse, 0, len(execs))
	for i := range execs {
		responses = append(responses, toExecutionResponse(&execs[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": responses,
		"count":     len(responses),
	}, h.log)
}

// HandleGet returns one workflow with its stages, symbol states and
// gate results.
// GET /api/workflows/{id}
func (h *WorkflowHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exec, err := h.executions.GetExecution(id)
	if err != nil {
		h.log.Error().Err(err).Str("workflow_id", id).Msg("Failed to load workflow")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exec == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}

	stages, err := h.executions.GetStageExecutions(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	states, err := h.executions.GetSymbolStates(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	gateRecords, err := h.gates.ListForWorkflow(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	detail := WorkflowDetail{
		Execution:    toExecutionResponse(exec),
		Stages:       make([]StageResponse, 0, len(stages)),
		SymbolStates: make([]SymbolStateResponse, 0, len(states)),
		GateResults:  make([]GateResponse, 0, len(gateRecords)),
	}
	for _, stage := range stages {
		detail.Stages = append(detail.Stages, StageResponse{
			Stage:            string(stage.Stage),
			Status:           string(stage.Status),
			SymbolsProcessed: stage.SymbolsProcessed,
			SymbolsFailed:    stage.SymbolsFailed,
			Error:            stage.Error,
			StartedAt:        stage.StartedAt,
			CompletedAt:      stage.CompletedAt,
		})
	}
	for _, state := range states {
		detail.SymbolStates = append(detail.SymbolStates, SymbolStateResponse{
			Symbol:      state.Symbol,
			Stage:       string(state.Stage),
			Status:      string(state.Status),
			Attempts:    state.Attempts,
			LastError:   state.LastError,
			NextRetryAt: state.NextRetryAt,
			UpdatedAt:   state.UpdatedAt,
		})
	}
	for _, record := range gateRecords {
		detail.GateResults = append(detail.GateResults, GateResponse{
			Symbol:       record.Symbol,
			Stage:        string(record.Stage),
			Gate:         record.Gate,
			Passed:       record.Passed,
			Reason:       record.Reason,
			Action:       record.Action,
			QualityScore: record.QualityScore,
		})
	}

	writeJSON(w, http.StatusOK, detail, h.log)
}

// HandleProgress returns the live progress snapshot of a running
// workflow. Finished workflows have no tracker.
// GET /api/workflows/{id}/progress
func (h *WorkflowHandlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progress, ok := h.runner.Progress(id)
	if !ok {
		http.Error(w, "no live progress for workflow", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, progress, h.log)
}

// StartWorkflowRequest is the body of POST /api/workflows.
type StartWorkflowRequest struct {
	Symbols []string `json:"symbols"`
	Force   bool     `json:"force"`
}

// HandleStart launches an on-demand workflow run in the background and
// returns its ID.
// POST /api/workflows
func (h *WorkflowHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) == 0 {
		http.Error(w, "symbols are required", http.StatusBadRequest)
		return
	}

	workflowID, err := h.runner.StartAsync(workflow.RunSpec{
		Type:    workflow.TypeOnDemand,
		Symbols: req.Symbols,
		Force:   req.Force,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to start workflow")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"workflow_id": workflowID,
		"status":      string(workflow.StatusPending),
	}, h.log)
}

// HandlePause asks a running workflow to stop at the next dispatch
// boundary.
// POST /api/workflows/{id}/pause
func (h *WorkflowHandlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exec, err := h.executions.GetExecution(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exec == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}

	if err := h.runner.Pause(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflow_id": id,
		"status":      string(workflow.StatusPaused),
	}, h.log)
}

// HandleResume resumes an interrupted workflow in the background.
// POST /api/workflows/{id}/resume
func (h *WorkflowHandlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exec, err := h.executions.GetExecution(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exec == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	if exec.Status == workflow.StatusCompleted {
		http.Error(w, "workflow already completed", http.StatusConflict)
		return
	}
	if exec.Status == workflow.StatusRunning {
		http.Error(w, "workflow is already running", http.StatusConflict)
		return
	}

	go func() {
		if _, rerr := h.runner.Resume(context.Background(), id); rerr != nil {
			h.log.Error().Err(rerr).Str("workflow_id", id).Msg("Background resume failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"workflow_id": id,
		"status":      "resuming",
	}, h.log)
}

// HandleDLQList returns the unresolved dead letter items.
// GET /api/dlq
func (h *WorkflowHandlers) HandleDLQList(w http.ResponseWriter, r *http.Request) {
	items, err := h.dlq.Unresolved()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list dead letter items")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	responses := make([]DLQItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, DLQItemResponse{
			ID:           item.ID,
			WorkflowID:   item.WorkflowID,
			Symbol:       item.Symbol,
			Stage:        string(item.Stage),
			FailureCount: item.FailureCount,
			FirstError:   item.FirstError,
			LastError:    item.LastError,
			CreatedAt:    item.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": responses,
		"count": len(responses),
	}, h.log)
}

// ResolveDLQRequest is the body of POST /api/dlq/{id}/resolve.
type ResolveDLQRequest struct {
	Note string `json:"note"`
}

// HandleDLQResolve marks a dead letter item as resolved.
// POST /api/dlq/{id}/resolve
func (h *WorkflowHandlers) HandleDLQResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid dlq item id", http.StatusBadRequest)
		return
	}

	var req ResolveDLQRequest
	if r.Body != nil {
		// Note is optional; an empty body resolves without one.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	item, err := h.dlq.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Error(w, "dlq item not found", http.StatusNotFound)
		return
	}
	if item.Resolved {
		http.Error(w, "dlq item already resolved", http.StatusConflict)
		return
	}

	if err := h.dlq.Resolve(id, req.Note); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": "resolved",
	}, h.log)
}

func toExecutionResponse(exec *workflow.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:               exec.ID,
		Type:             string(exec.Type),
		Status:           string(exec.Status),
		Symbols:          exec.Symbols,
		TotalSymbols:     exec.TotalSymbols,
		CompletedSymbols: exec.CompletedSymbols,
		FailedSymbols:    exec.FailedSymbols,
		Error:            exec.Error,
		CreatedAt:        exec.CreatedAt,
		StartedAt:        exec.StartedAt,
		CompletedAt:      exec.CompletedAt,
	}
}

// queryInt reads an integer query parameter, falling back to def when
// missing or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return def
	}
	return value
}
