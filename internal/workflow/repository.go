package workflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ExecutionRepository persists executions, stage executions and symbol
// states on the workflow database. The orchestrator is its only
// writer.
type ExecutionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewExecutionRepository creates an execution repository on the
// workflow database.
func NewExecutionRepository(db *sql.DB, log zerolog.Logger) *ExecutionRepository {
	return &ExecutionRepository{
		db:  db,
		log: log.With().Str("component", "workflow_repository").Logger(),
	}
}

// CreateExecution inserts a new run in pending state.
func (r *ExecutionRepository) CreateExecution(exec *Execution) error {
	symbols, err := json.Marshal(exec.Symbols)
	if err != nil {
		return fmt.Errorf("failed to encode symbols: %w", err)
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now().UTC()
	}
	if exec.Status == "" {
		exec.Status = StatusPending
	}

	_, err = r.db.Exec(`
		INSERT INTO workflow_executions (id, workflow_type, status, symbols_json, total_symbols, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, exec.ID, string(exec.Type), string(exec.Status), string(symbols), len(exec.Symbols), exec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert workflow execution: %w", err)
	}
	return nil
}

// GetExecution returns one run, or nil when the ID is unknown.
func (r *ExecutionRepository) GetExecution(id string) (*Execution, error) {
	row := r.db.QueryRow(`
		SELECT id, workflow_type, status, symbols_json, total_symbols, completed_symbols, failed_symbols, error, created_at, started_at, completed_at
		FROM workflow_executions
		WHERE id = ?
	`, id)

	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}
	return exec, nil
}

// ListExecutions returns recent runs, newest first.
func (r *ExecutionRepository) ListExecutions(limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, workflow_type, status, symbols_json, total_symbols, completed_symbols, failed_symbols, error, created_at, started_at, completed_at
		FROM workflow_executions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow executions: %w", err)
	}
	defer rows.Close()

	var execs []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow execution: %w", err)
		}
		execs = append(execs, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow executions: %w", err)
	}
	return execs, nil
}

// MarkExecutionStarted flips a run to running and stamps started_at.
func (r *ExecutionRepository) MarkExecutionStarted(id string) error {
	_, err := r.db.Exec(`
		UPDATE workflow_executions
		SET status = ?, started_at = COALESCE(started_at, ?)
		WHERE id = ?
	`, string(StatusRunning), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark execution started: %w", err)
	}
	return nil
}

// SetExecutionStatus updates only the status column. Used for pause
// and resume transitions.
func (r *ExecutionRepository) SetExecutionStatus(id string, status Status) error {
	_, err := r.db.Exec(`UPDATE workflow_executions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set execution status: %w", err)
	}
	return nil
}

// UpdateCounts refreshes the running totals while a run is live.
func (r *ExecutionRepository) UpdateCounts(id string, completed, failed int) error {
	_, err := r.db.Exec(`
		UPDATE workflow_executions
		SET completed_symbols = ?, failed_symbols = ?
		WHERE id = ?
	`, completed, failed, id)
	if err != nil {
		return fmt.Errorf("failed to update workflow counts: %w", err)
	}
	return nil
}

// MarkExecutionFinished records the terminal state and final counts.
func (r *ExecutionRepository) MarkExecutionFinished(id string, status Status, errMsg string, completed, failed int) error {
	_, err := r.db.Exec(`
		UPDATE workflow_executions
		SET status = ?, error = ?, completed_symbols = ?, failed_symbols = ?, completed_at = ?
		WHERE id = ?
	`, string(status), nullIfEmpty(errMsg), completed, failed, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark execution finished: %w", err)
	}
	return nil
}

// StartStage opens a stage execution record in running state.
func (r *ExecutionRepository) StartStage(workflowID string, stage Stage) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO workflow_stage_executions (workflow_id, stage, status, started_at)
		VALUES (?, ?, ?, ?)
	`, workflowID, string(stage), string(StatusRunning), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to start stage %s: %w", stage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read stage execution id: %w", err)
	}
	return id, nil
}

// FinishStage closes a stage execution record.
func (r *ExecutionRepository) FinishStage(stageID int64, status Status, processed, failed int, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE workflow_stage_executions
		SET status = ?, symbols_processed = ?, symbols_failed = ?, error = ?, completed_at = ?
		WHERE id = ?
	`, string(status), processed, failed, nullIfEmpty(errMsg), time.Now().UTC().Format(time.RFC3339), stageID)
	if err != nil {
		return fmt.Errorf("failed to finish stage execution %d: %w", stageID, err)
	}
	return nil
}

// GetStageExecutions returns a run's stage records in start order.
func (r *ExecutionRepository) GetStageExecutions(workflowID string) ([]StageExecution, error) {
	rows, err := r.db.Query(`
		SELECT id, workflow_id, stage, status, symbols_processed, symbols_failed, error, started_at, completed_at
		FROM workflow_stage_executions
		WHERE workflow_id = ?
		ORDER BY id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage executions: %w", err)
	}
	defer rows.Close()

	var stages []StageExecution
	for rows.Next() {
		var st StageExecution
		var errText sql.NullString
		var startedAt string
		var completedAt sql.NullString

		if err := rows.Scan(&st.ID, &st.WorkflowID, &st.Stage, &st.Status,
			&st.SymbolsProcessed, &st.SymbolsFailed, &errText, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage execution: %w", err)
		}
		st.Error = errText.String
		st.StartedAt = parseTime(startedAt)
		st.CompletedAt = parseTimePtr(completedAt)
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage executions: %w", err)
	}
	return stages, nil
}

// LatestStage returns the newest record for one stage of a run, or nil
// when the stage has never started.
func (r *ExecutionRepository) LatestStage(workflowID string, stage Stage) (*StageExecution, error) {
	row := r.db.QueryRow(`
		SELECT id, workflow_id, stage, status, symbols_processed, symbols_failed, error, started_at, completed_at
		FROM workflow_stage_executions
		WHERE workflow_id = ? AND stage = ?
		ORDER BY id DESC
		LIMIT 1
	`, workflowID, string(stage))

	var st StageExecution
	var errText sql.NullString
	var startedAt string
	var completedAt sql.NullString

	err := row.Scan(&st.ID, &st.WorkflowID, &st.Stage, &st.Status,
		&st.SymbolsProcessed, &st.SymbolsFailed, &errText, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest stage execution: %w", err)
	}
	st.Error = errText.String
	st.StartedAt = parseTime(startedAt)
	st.CompletedAt = parseTimePtr(completedAt)
	return &st, nil
}

// UpsertSymbolState writes one symbol's state for one stage. The
// primary key on (workflow_id, symbol, stage) serializes concurrent
// writers; the last writer wins.
func (r *ExecutionRepository) UpsertSymbolState(state SymbolState) error {
	var nextRetry interface{}
	if state.NextRetryAt != nil {
		nextRetry = state.NextRetryAt.UTC().Format(time.RFC3339)
	}
	_, err := r.db.Exec(`
		INSERT INTO workflow_symbol_states (workflow_id, symbol, stage, status, attempts, last_error, next_retry_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id, symbol, stage) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			next_retry_at = excluded.next_retry_at,
			updated_at = excluded.updated_at
	`, state.WorkflowID, state.Symbol, string(state.Stage), string(state.Status),
		state.Attempts, nullIfEmpty(state.LastError), nextRetry,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert symbol state %s/%s: %w", state.Symbol, state.Stage, err)
	}
	return nil
}

// GetSymbolStates returns every symbol state of a run.
func (r *ExecutionRepository) GetSymbolStates(workflowID string) ([]SymbolState, error) {
	rows, err := r.db.Query(`
		SELECT workflow_id, symbol, stage, status, attempts, last_error, next_retry_at, updated_at
		FROM workflow_symbol_states
		WHERE workflow_id = ?
		ORDER BY symbol ASC, stage ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol states: %w", err)
	}
	defer rows.Close()

	var states []SymbolState
	for rows.Next() {
		var st SymbolState
		var lastError, nextRetry sql.NullString
		var updatedAt string

		if err := rows.Scan(&st.WorkflowID, &st.Symbol, &st.Stage, &st.Status,
			&st.Attempts, &lastError, &nextRetry, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan symbol state: %w", err)
		}
		st.LastError = lastError.String
		st.NextRetryAt = parseTimePtr(nextRetry)
		st.UpdatedAt = parseTime(updatedAt)
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol states: %w", err)
	}
	return states, nil
}

// SymbolStatuses returns symbol -> status for one stage of a run.
func (r *ExecutionRepository) SymbolStatuses(workflowID string, stage Stage) (map[string]Status, error) {
	rows, err := r.db.Query(`
		SELECT symbol, status
		FROM workflow_symbol_states
		WHERE workflow_id = ? AND stage = ?
	`, workflowID, string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]Status)
	for rows.Next() {
		var symbol, status string
		if err := rows.Scan(&symbol, &status); err != nil {
			return nil, fmt.Errorf("failed to scan symbol status: %w", err)
		}
		statuses[symbol] = Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol statuses: %w", err)
	}
	return statuses, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*Execution, error) {
	var exec Execution
	var symbolsJSON string
	var errText sql.NullString
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := row.Scan(&exec.ID, &exec.Type, &exec.Status, &symbolsJSON,
		&exec.TotalSymbols, &exec.CompletedSymbols, &exec.FailedSymbols,
		&errText, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &exec.Symbols); err != nil {
		return nil, fmt.Errorf("failed to decode symbols: %w", err)
	}
	exec.Error = errText.String
	exec.CreatedAt = parseTime(createdAt)
	exec.StartedAt = parseTimePtr(startedAt)
	exec.CompletedAt = parseTimePtr(completedAt)
	return &exec, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
