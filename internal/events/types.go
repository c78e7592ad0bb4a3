// Package events provides the in-process event bus the pipeline
// announces itself on. Emissions are synchronous; subscribers must
// return quickly or hand off to their own goroutines.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	WorkflowStarted   EventType = "WORKFLOW_STARTED"
	WorkflowCompleted EventType = "WORKFLOW_COMPLETED"
	StageCompleted    EventType = "STAGE_COMPLETED"
	SymbolFailed      EventType = "SYMBOL_FAILED"
	DLQItemAdded      EventType = "DLQ_ITEM_ADDED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event. Data carries the JSON shape of the
// typed payload the emitter passed to EmitTyped.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
