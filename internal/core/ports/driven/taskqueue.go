package driven

import (
	"context"
	"encoding/json"
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// TaskQueue is the durable job queue.
//
// Callers only enqueue, claim and settle tasks; row access stays inside the
// adapter. Every method must be safe for concurrent use by many workers,
// including workers in other processes sharing the same store.
type TaskQueue interface {
	// Enqueue creates a pending task, or returns the existing pending or
	// processing task for the same owner, entity and task type. created is
	// false when an existing task was returned.
	Enqueue(ctx context.Context, task *domain.Task) (existing *domain.Task, created bool, err error)

	// ClaimNext atomically moves the highest priority, oldest eligible
	// pending task to processing and returns it. Eligible means not_before
	// has passed. ownerID restricts the claim when non-empty. The returned
	// task carries a fresh ClaimID that every later settlement must present.
	// Returns nil and no error when nothing is claimable.
	ClaimNext(ctx context.Context, ownerID string, now time.Time, lease time.Duration) (*domain.Task, error)

	// Heartbeat, Complete and Fail only act on a processing task still held
	// under claimID. A task that was swept and claimed again answers
	// domain.ErrTaskNotClaimable to its previous holder.

	// Heartbeat extends the lease of a processing task.
	Heartbeat(ctx context.Context, taskID, claimID string, until time.Time) error

	// Complete marks a processing task completed and stores its result.
	Complete(ctx context.Context, taskID, claimID string, result json.RawMessage, now time.Time) error

	// Fail re-queues the task with retry_count+1 and not_before=retryAt when
	// shouldRetry is set and retries remain; otherwise it marks it failed.
	// The updated task is returned.
	Fail(ctx context.Context, taskID, claimID, errMsg string, shouldRetry bool, now, retryAt time.Time) (*domain.Task, error)

	// Cancel moves a pending or processing task to cancelled.
	Cancel(ctx context.Context, taskID string, now time.Time) error

	// RecoverExpired returns the ids of processing tasks whose lease ended
	// before now. The caller settles them through Fail with the claim it
	// reads from GetTask.
	RecoverExpired(ctx context.Context, now time.Time) ([]string, error)

	// GetTask retrieves a task by ID. Returns domain.ErrNotFound if missing.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// ListTasks returns matching tasks, newest first, capped at 100.
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
}
