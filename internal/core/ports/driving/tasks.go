package driving

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// TaskService manages background indexing tasks.
type TaskService interface {
	// CreateTask validates and enqueues a task. When an active task already
	// exists for the same owner, entity and type it is returned with
	// created=false. Processing is triggered asynchronously.
	CreateTask(ctx context.Context, req domain.TaskRequest) (task *domain.Task, created bool, err error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns matching tasks, newest first, capped at 100.
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)

	// RunTasks claims and processes up to maxTasks tasks synchronously,
	// stopping early when the queue is empty.
	RunTasks(ctx context.Context, ownerID string, maxTasks int) (*domain.RunSummary, error)

	// CancelTask cancels a pending or processing task.
	CancelTask(ctx context.Context, id string) error
}

// Dispatcher runs tasks in the background.
type Dispatcher interface {
	// Start runs workers until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all workers, waiting for in-flight tasks.
	Stop() error

	// Wake asks idle workers to poll immediately.
	Wake()
}
