package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// GateRecord is one persisted gate outcome.
type GateRecord struct {
	ID           int64
	WorkflowID   string
	Symbol       string
	Stage        Stage
	Gate         string
	Passed       bool
	Reason       string
	Action       string
	QualityScore *float64
	CreatedAt    time.Time
}

// GateResultRepository stores the gate audit trail on the workflow
// database.
type GateResultRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewGateResultRepository creates a gate result repository on the
// workflow database.
func NewGateResultRepository(db *sql.DB, log zerolog.Logger) *GateResultRepository {
	return &GateResultRepository{
		db:  db,
		log: log.With().Str("component", "gate_result_repository").Logger(),
	}
}

// Insert appends one gate outcome.
func (r *GateResultRepository) Insert(workflowID, symbol string, stage Stage, result GateResult) error {
	var score sql.NullFloat64
	if result.QualityScore != nil {
		score = sql.NullFloat64{Float64: *result.QualityScore, Valid: true}
	}
	passed := 0
	if result.Passed {
		passed = 1
	}

	_, err := r.db.Exec(`
		INSERT INTO workflow_gate_results (workflow_id, symbol, stage, gate, passed, reason, action, quality_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, workflowID, symbol, string(stage), result.Gate, passed,
		nullIfEmpty(result.Reason), nullIfEmpty(result.Action), score,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert gate result: %w", err)
	}
	return nil
}

// ListForWorkflow returns a run's gate outcomes in decision order.
func (r *GateResultRepository) ListForWorkflow(workflowID string) ([]GateRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, workflow_id, symbol, stage, gate, passed, reason, action, quality_score, created_at
		FROM workflow_gate_results
		WHERE workflow_id = ?
		ORDER BY id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gate results: %w", err)
	}
	defer rows.Close()

	var records []GateRecord
	for rows.Next() {
		var rec GateRecord
		var passed int
		var reason, action sql.NullString
		var score sql.NullFloat64
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.WorkflowID, &rec.Symbol, &rec.Stage,
			&rec.Gate, &passed, &reason, &action, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan gate result: %w", err)
		}
		rec.Passed = passed != 0
		rec.Reason = reason.String
		rec.Action = action.String
		if score.Valid {
			v := score.Float64
			rec.QualityScore = &v
		}
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gate results: %w", err)
	}
	return records, nil
}
