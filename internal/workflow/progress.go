package workflow

import (
	"sync"
	"time"
)

// StageProgress counts symbol outcomes for one stage. Retried counts
// attempts, not symbols, so it can exceed Total.
type StageProgress struct {
	Stage     Stage     `json:"stage"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Retried   int       `json:"retried"`
	StartedAt time.Time `json:"started_at"`
}

// Progress is a point-in-time view of a running workflow, served by
// the progress endpoint while the run is live.
type Progress struct {
	WorkflowID   string          `json:"workflow_id"`
	CurrentStage Stage           `json:"current_stage"`
	Stages       []StageProgress `json:"stages"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProgressTracker accumulates per-stage counts as the orchestrator
// reports symbol outcomes. Safe for concurrent use; the worker pool
// reports from multiple goroutines.
type ProgressTracker struct {
	mu         sync.Mutex
	workflowID string
	stages     []*StageProgress
	current    *StageProgress
	updatedAt  time.Time
}

// NewProgressTracker creates a tracker for one run.
func NewProgressTracker(workflowID string) *ProgressTracker {
	return &ProgressTracker{workflowID: workflowID}
}

// StartStage opens counters for the next stage.
func (t *ProgressTracker) StartStage(stage Stage, total int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &StageProgress{Stage: stage, Total: total, StartedAt: time.Now()}
	t.stages = append(t.stages, t.current)
	t.updatedAt = time.Now()
}

// SymbolCompleted records one completed symbol on the current stage.
func (t *ProgressTracker) SymbolCompleted() { t.bump(func(p *StageProgress) { p.Completed++ }) }

// SymbolFailed records one terminally failed symbol on the current stage.
func (t *ProgressTracker) SymbolFailed() { t.bump(func(p *StageProgress) { p.Failed++ }) }

// SymbolSkipped records one skipped symbol on the current stage.
func (t *ProgressTracker) SymbolSkipped() { t.bump(func(p *StageProgress) { p.Skipped++ }) }

// SymbolRetried records one retry attempt on the current stage.
func (t *ProgressTracker) SymbolRetried() { t.bump(func(p *StageProgress) { p.Retried++ }) }

func (t *ProgressTracker) bump(fn func(*StageProgress)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	fn(t.current)
	t.updatedAt = time.Now()
}

// Snapshot returns a copy of the current state.
func (t *ProgressTracker) Snapshot() Progress {
	if t == nil {
		return Progress{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Progress{
		WorkflowID: t.workflowID,
		UpdatedAt:  t.updatedAt,
		Stages:     make([]StageProgress, 0, len(t.stages)),
	}
	if t.current != nil {
		snap.CurrentStage = t.current.Stage
	}
	for _, st := range t.stages {
		snap.Stages = append(snap.Stages, *st)
	}
	return snap
}
