package workflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DLQItem is a symbol that exhausted its retries for one stage.
// Repeated failures of the same (workflow, symbol, stage) tuple fold
// into one unresolved item with a growing failure count.
type DLQItem struct {
	ID             int64
	WorkflowID     string
	Symbol         string
	Stage          Stage
	FailureCount   int
	FirstError     string
	LastError      string
	Payload        map[string]string
	Resolved       bool
	ResolvedAt     *time.Time
	ResolutionNote string
	CreatedAt      time.Time
}

// DLQRepository stores dead letter items on the workflow database.
type DLQRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDLQRepository creates a dead letter repository on the workflow
// database.
func NewDLQRepository(db *sql.DB, log zerolog.Logger) *DLQRepository {
	return &DLQRepository{
		db:  db,
		log: log.With().Str("component", "dlq_repository").Logger(),
	}
}

// Add records a terminal failure. When an unresolved item already
// exists for the tuple, its failure count and last error are updated
// instead of inserting a second row. Resolved items stay untouched so
// a recurrence after resolution opens a fresh item.
func (r *DLQRepository) Add(workflowID, symbol string, stage Stage, errMsg string, payload map[string]string) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode dlq payload: %w", err)
	}

	var existingID int64
	err = r.db.QueryRow(`
		SELECT id FROM workflow_dlq
		WHERE workflow_id = ? AND symbol = ? AND stage = ? AND resolved = 0
		ORDER BY id DESC
		LIMIT 1
	`, workflowID, symbol, string(stage)).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		_, err = r.db.Exec(`
			INSERT INTO workflow_dlq (workflow_id, symbol, stage, failure_count, first_error, last_error, payload_json, created_at)
			VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		`, workflowID, symbol, string(stage), errMsg, errMsg, string(payloadJSON),
			time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert dlq item: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check dlq for %s/%s: %w", symbol, stage, err)
	default:
		_, err = r.db.Exec(`
			UPDATE workflow_dlq
			SET failure_count = failure_count + 1, last_error = ?, payload_json = ?
			WHERE id = ?
		`, errMsg, string(payloadJSON), existingID)
		if err != nil {
			return fmt.Errorf("failed to update dlq item %d: %w", existingID, err)
		}
	}

	r.log.Warn().
		Str("workflow_id", workflowID).
		Str("symbol", symbol).
		Str("stage", string(stage)).
		Str("error", errMsg).
		Msg("Symbol moved to dead letter queue")
	return nil
}

// Unresolved returns open items, oldest first.
func (r *DLQRepository) Unresolved() ([]DLQItem, error) {
	rows, err := r.db.Query(`
		SELECT id, workflow_id, symbol, stage, failure_count, first_error, last_error, payload_json, resolved, resolved_at, resolution_note, created_at
		FROM workflow_dlq
		WHERE resolved = 0
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dlq: %w", err)
	}
	defer rows.Close()

	var items []DLQItem
	for rows.Next() {
		item, err := scanDLQItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dlq item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dlq items: %w", err)
	}
	return items, nil
}

// GetByID returns one item, or nil when the ID is unknown.
func (r *DLQRepository) GetByID(id int64) (*DLQItem, error) {
	row := r.db.QueryRow(`
		SELECT id, workflow_id, symbol, stage, failure_count, first_error, last_error, payload_json, resolved, resolved_at, resolution_note, created_at
		FROM workflow_dlq
		WHERE id = ?
	`, id)

	item, err := scanDLQItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dlq item %d: %w", id, err)
	}
	return item, nil
}

// Resolve closes an item with an operator note.
func (r *DLQRepository) Resolve(id int64, note string) error {
	res, err := r.db.Exec(`
		UPDATE workflow_dlq
		SET resolved = 1, resolved_at = ?, resolution_note = ?
		WHERE id = ? AND resolved = 0
	`, time.Now().UTC().Format(time.RFC3339), nullIfEmpty(note), id)
	if err != nil {
		return fmt.Errorf("failed to resolve dlq item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read resolve result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("dlq item %d not found or already resolved", id)
	}

	r.log.Info().Int64("dlq_id", id).Msg("Dead letter item resolved")
	return nil
}

func scanDLQItem(row rowScanner) (*DLQItem, error) {
	var item DLQItem
	var firstError, lastError, payloadJSON, resolvedAt, note sql.NullString
	var resolved int
	var createdAt string

	err := row.Scan(&item.ID, &item.WorkflowID, &item.Symbol, &item.Stage,
		&item.FailureCount, &firstError, &lastError, &payloadJSON,
		&resolved, &resolvedAt, &note, &createdAt)
	if err != nil {
		return nil, err
	}
	item.FirstError = firstError.String
	item.LastError = lastError.String
	item.Resolved = resolved != 0
	item.ResolvedAt = parseTimePtr(resolvedAt)
	item.ResolutionNote = note.String
	item.CreatedAt = parseTime(createdAt)

	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &item.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode dlq payload: %w", err)
		}
	}
	return &item, nil
}
