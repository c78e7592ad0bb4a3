package server

import (
	"context"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/workflow"
)

// WorkflowRunner defines the contract for starting and controlling
// workflow runs. Used by the workflow handlers to enable testing with
// mocks.
type WorkflowRunner interface {
	StartAsync(spec workflow.RunSpec) (string, error)
	Resume(ctx context.Context, workflowID string) (*workflow.RunResult, error)
	Pause(workflowID string) error
	Progress(workflowID string) (workflow.Progress, bool)
}

// SnapshotBackupper defines the contract for triggering snapshot
// backups. Used by the system handlers to enable testing with mocks.
type SnapshotBackupper interface {
	CreateAndUpload(ctx context.Context) (string, error)
}

// NewsFetcher defines the contract for fetching recent news articles.
// Used by the data handlers to enable testing with mocks.
type NewsFetcher interface {
	FetchNews(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error)
}
