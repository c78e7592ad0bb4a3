package scheduler

import (
	"context"

	"github.com/mgalanis/conveyor/internal/workflow"
)

// WorkflowRunner defines the contract for starting workflow runs.
// Used by scheduler jobs to enable testing with mocks.
type WorkflowRunner interface {
	Run(ctx context.Context, spec workflow.RunSpec) (*workflow.RunResult, error)
}

// SnapshotBackupper defines the contract for snapshot backup operations.
// Used by scheduler jobs to enable testing with mocks.
type SnapshotBackupper interface {
	CreateAndUpload(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context, retentionDays int) error
}

// DatabaseMaintainer defines the contract for database maintenance sweeps.
// Used by scheduler jobs to enable testing with mocks.
type DatabaseMaintainer interface {
	RunMaintenance(ctx context.Context) error
}
