package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CheckpointState is the progress snapshot written after each stage.
// Resume loads the newest snapshot and restarts from the stage after
// the one recorded here.
type CheckpointState struct {
	Stage            Stage             `msgpack:"stage"`
	CompletedSymbols []string          `msgpack:"completed_symbols"`
	Extra            map[string]string `msgpack:"extra,omitempty"`
}

// CheckpointRepository stores stage checkpoints as msgpack blobs.
// Checkpoints are append-only; Load always returns the newest one.
type CheckpointRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCheckpointRepository creates a checkpoint repository on the
// workflow database.
func NewCheckpointRepository(db *sql.DB, log zerolog.Logger) *CheckpointRepository {
	return &CheckpointRepository{
		db:  db,
		log: log.With().Str("component", "checkpoint_repository").Logger(),
	}
}

// Save appends a checkpoint for the run.
func (r *CheckpointRepository) Save(workflowID string, state *CheckpointState) error {
	if state == nil {
		return fmt.Errorf("checkpoint state is nil")
	}
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO workflow_checkpoints (workflow_id, stage, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, workflowID, string(state.Stage), payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	r.log.Debug().
		Str("workflow_id", workflowID).
		Str("stage", string(state.Stage)).
		Int("completed_symbols", len(state.CompletedSymbols)).
		Msg("Checkpoint saved")
	return nil
}

// Load returns the newest checkpoint for the run, or nil when none
// has been written.
func (r *CheckpointRepository) Load(workflowID string) (*CheckpointState, error) {
	var payload []byte
	err := r.db.QueryRow(`
		SELECT payload
		FROM workflow_checkpoints
		WHERE workflow_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, workflowID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state CheckpointState
	if err := msgpack.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &state, nil
}
