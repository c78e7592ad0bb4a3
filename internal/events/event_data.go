package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// WorkflowStartedData contains data for WorkflowStarted events
type WorkflowStartedData struct {
	WorkflowID   string `json:"workflow_id"`
	WorkflowType string `json:"workflow_type"`
	TotalSymbols int    `json:"total_symbols"`
}

// EventType returns the event type for WorkflowStartedData
func (d *WorkflowStartedData) EventType() EventType {
	return WorkflowStarted
}

// WorkflowCompletedData contains data for WorkflowCompleted events
type WorkflowCompletedData struct {
	WorkflowID      string  `json:"workflow_id"`
	Status          string  `json:"status"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Skipped         int     `json:"skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EventType returns the event type for WorkflowCompletedData
func (d *WorkflowCompletedData) EventType() EventType {
	return WorkflowCompleted
}

// StageCompletedData contains data for StageCompleted events
type StageCompletedData struct {
	WorkflowID string `json:"workflow_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
}

// EventType returns the event type for StageCompletedData
func (d *StageCompletedData) EventType() EventType {
	return StageCompleted
}

// SymbolFailedData contains data for SymbolFailed events
type SymbolFailedData struct {
	WorkflowID string `json:"workflow_id"`
	Symbol     string `json:"symbol"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	Attempts   int    `json:"attempts"`
}

// EventType returns the event type for SymbolFailedData
func (d *SymbolFailedData) EventType() EventType {
	return SymbolFailed
}

// DLQItemAddedData contains data for DLQItemAdded events
type DLQItemAddedData struct {
	WorkflowID string `json:"workflow_id"`
	Symbol     string `json:"symbol"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// EventType returns the event type for DLQItemAddedData
func (d *DLQItemAddedData) EventType() EventType {
	return DLQItemAdded
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key             string  `json:"key"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
