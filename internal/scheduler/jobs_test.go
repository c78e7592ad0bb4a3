package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/mgalanis/conveyor/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls  int
	spec   workflow.RunSpec
	result *workflow.RunResult
	err    error
}

func (r *stubRunner) Run(_ context.Context, spec workflow.RunSpec) (*workflow.RunResult, error) {
	r.calls++
	r.spec = spec
	return r.result, r.err
}

func TestDailyBatchJob_Run(t *testing.T) {
	t.Run("runs the configured universe as a daily batch", func(t *testing.T) {
		runner := &stubRunner{result: &workflow.RunResult{
			WorkflowID: "wf-1",
			Status:     workflow.StatusCompleted,
			Completed:  []string{"AAPL", "MSFT"},
		}}
		job := NewDailyBatchJob(runner, []string{"AAPL", "MSFT"}, zerolog.Nop())

		require.NoError(t, job.Run())
		assert.Equal(t, 1, runner.calls)
		assert.Equal(t, workflow.TypeDailyBatch, runner.spec.Type)
		assert.Equal(t, []string{"AAPL", "MSFT"}, runner.spec.Symbols)
		assert.False(t, runner.spec.Force)
	})

	t.Run("skips when no symbols are configured", func(t *testing.T) {
		runner := &stubRunner{}
		job := NewDailyBatchJob(runner, nil, zerolog.Nop())

		require.NoError(t, job.Run())
		assert.Equal(t, 0, runner.calls)
	})

	t.Run("propagates runner errors", func(t *testing.T) {
		runner := &stubRunner{err: fmt.Errorf("no workflow db")}
		job := NewDailyBatchJob(runner, []string{"AAPL"}, zerolog.Nop())

		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to run daily batch")
	})

	t.Run("a failed workflow fails the job", func(t *testing.T) {
		runner := &stubRunner{result: &workflow.RunResult{
			WorkflowID: "wf-2",
			Status:     workflow.StatusFailed,
		}}
		job := NewDailyBatchJob(runner, []string{"AAPL"}, zerolog.Nop())

		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wf-2")
	})

	t.Run("failed symbols alone do not fail the job", func(t *testing.T) {
		runner := &stubRunner{result: &workflow.RunResult{
			WorkflowID:            "wf-3",
			Status:                workflow.StatusCompleted,
			CompletedWithFailures: true,
			Completed:             []string{"AAPL"},
			Failed:                []string{"BAD"},
		}}
		job := NewDailyBatchJob(runner, []string{"AAPL", "BAD"}, zerolog.Nop())

		assert.NoError(t, job.Run())
	})
}

type stubBackupper struct {
	key        string
	createErr  error
	rotateErr  error
	created    int
	retentions []int
}

func (b *stubBackupper) CreateAndUpload(_ context.Context) (string, error) {
	b.created++
	return b.key, b.createErr
}

func (b *stubBackupper) RotateOldBackups(_ context.Context, retentionDays int) error {
	b.retentions = append(b.retentions, retentionDays)
	return b.rotateErr
}

func TestBackupJob_Run(t *testing.T) {
	t.Run("backs up then rotates", func(t *testing.T) {
		backups := &stubBackupper{key: "conveyor-backup-2025-08-25-040000.tar.gz"}
		job := NewBackupJob(backups, 30, zerolog.Nop())

		require.NoError(t, job.Run())
		assert.Equal(t, 1, backups.created)
		assert.Equal(t, []int{30}, backups.retentions)
	})

	t.Run("a failed backup skips rotation", func(t *testing.T) {
		backups := &stubBackupper{createErr: fmt.Errorf("bucket unavailable")}
		job := NewBackupJob(backups, 30, zerolog.Nop())

		err := job.Run()
		require.Error(t, err)
		assert.Empty(t, backups.retentions)
	})

	t.Run("a failed rotation does not fail the job", func(t *testing.T) {
		backups := &stubBackupper{key: "k", rotateErr: fmt.Errorf("listing failed")}
		job := NewBackupJob(backups, 30, zerolog.Nop())

		assert.NoError(t, job.Run())
	})
}

type stubMaintainer struct {
	calls int
	err   error
}

func (m *stubMaintainer) RunMaintenance(_ context.Context) error {
	m.calls++
	return m.err
}

func TestMaintenanceJob_Run(t *testing.T) {
	maintainer := &stubMaintainer{}
	job := NewMaintenanceJob(maintainer, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, maintainer.calls)

	maintainer.err = fmt.Errorf("integrity check failed for market")
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}
