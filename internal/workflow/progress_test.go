package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Counts(t *testing.T) {
	tracker := NewProgressTracker("wf-1")

	tracker.StartStage(StageIngestion, 3)
	tracker.SymbolCompleted()
	tracker.SymbolRetried()
	tracker.SymbolRetried()
	tracker.SymbolCompleted()
	tracker.SymbolFailed()

	tracker.StartStage(StageIndicators, 2)
	tracker.SymbolCompleted()
	tracker.SymbolSkipped()

	snap := tracker.Snapshot()
	assert.Equal(t, "wf-1", snap.WorkflowID)
	assert.Equal(t, StageIndicators, snap.CurrentStage)
	require.Len(t, snap.Stages, 2)

	ingest := snap.Stages[0]
	assert.Equal(t, StageIngestion, ingest.Stage)
	assert.Equal(t, 3, ingest.Total)
	assert.Equal(t, 2, ingest.Completed)
	assert.Equal(t, 1, ingest.Failed)
	assert.Equal(t, 2, ingest.Retried)
	assert.False(t, ingest.StartedAt.IsZero())

	ind := snap.Stages[1]
	assert.Equal(t, 1, ind.Completed)
	assert.Equal(t, 1, ind.Skipped)
}

func TestProgressTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewProgressTracker("wf-2")
	tracker.StartStage(StageIngestion, 1)

	before := tracker.Snapshot()
	tracker.SymbolCompleted()
	after := tracker.Snapshot()

	assert.Equal(t, 0, before.Stages[0].Completed)
	assert.Equal(t, 1, after.Stages[0].Completed)
}

func TestProgressTracker_CountsBeforeStartAreDropped(t *testing.T) {
	tracker := NewProgressTracker("wf-3")

	assert.NotPanics(t, func() { tracker.SymbolCompleted() })
	assert.Empty(t, tracker.Snapshot().Stages)
}

func TestProgressTracker_NilReceiver(t *testing.T) {
	var tracker *ProgressTracker

	assert.NotPanics(t, func() {
		tracker.StartStage(StageIngestion, 1)
		tracker.SymbolCompleted()
		tracker.SymbolFailed()
		tracker.SymbolSkipped()
		tracker.SymbolRetried()
	})
	assert.Equal(t, Progress{}, tracker.Snapshot())
}
