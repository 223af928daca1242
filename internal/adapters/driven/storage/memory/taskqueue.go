package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure TaskQueue implements the interface.
var _ driven.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is an in-memory implementation of driven.TaskQueue.
// A single mutex makes every transition atomic.
type TaskQueue struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

// NewTaskQueue creates a new in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: make(map[string]*domain.Task),
	}
}

func clone(t *domain.Task) *domain.Task {
	c := *t
	return &c
}

// Enqueue stores task unless an active task with the same key exists.
func (q *TaskQueue) Enqueue(_ context.Context, task *domain.Task) (*domain.Task, bool, error) {
	if task == nil {
		return nil, false, domain.ErrInvalidInput
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	key := task.IdempotencyKey()
	for _, t := range q.tasks {
		if t.Status.IsActive() && t.IdempotencyKey() == key {
			return clone(t), false, nil
		}
	}
	if _, ok := q.tasks[task.ID]; ok {
		return nil, false, fmt.Errorf("%w: task %s", domain.ErrAlreadyExists, task.ID)
	}

	stored := clone(task)
	stored.Status = domain.TaskStatusPending
	stored.RetryCount = 0
	q.tasks[stored.ID] = stored
	return clone(stored), true, nil
}

// ClaimNext moves the best eligible pending task to processing.
func (q *TaskQueue) ClaimNext(_ context.Context, ownerID string, now time.Time, lease time.Duration) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *domain.Task
	for _, t := range q.tasks {
		if t.Status != domain.TaskStatusPending || t.NotBefore.After(now) {
			continue
		}
		if ownerID != "" && t.OwnerID != ownerID {
			continue
		}
		if best == nil || claimsBefore(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}

	started := now
	expires := now.Add(lease)
	best.Status = domain.TaskStatusProcessing
	best.StartedAt = &started
	best.LeaseExpiresAt = &expires
	best.ClaimID = uuid.New().String()
	best.UpdatedAt = now
	return clone(best), nil
}

// claimsBefore orders by priority desc, then created_at asc, then id.
func claimsBefore(a, b *domain.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// held returns the task if it exists and is processing under claimID.
func (q *TaskQueue) held(taskID, claimID string) (*domain.Task, error) {
	t, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status != domain.TaskStatusProcessing || t.ClaimID != claimID {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotClaimable, taskID)
	}
	return t, nil
}

// Heartbeat extends the lease of a task still held under claimID.
func (q *TaskQueue) Heartbeat(_ context.Context, taskID, claimID string, until time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, err := q.held(taskID, claimID)
	if err != nil {
		return err
	}
	t.LeaseExpiresAt = &until
	return nil
}

// Complete marks a task still held under claimID completed.
func (q *TaskQueue) Complete(_ context.Context, taskID, claimID string, result json.RawMessage, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, err := q.held(taskID, claimID)
	if err != nil {
		return err
	}
	t.Status = domain.TaskStatusCompleted
	t.Result = result
	t.ErrorMessage = ""
	t.LeaseExpiresAt = nil
	t.ClaimID = ""
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail re-queues or fails a task still held under claimID.
func (q *TaskQueue) Fail(_ context.Context, taskID, claimID, errMsg string, shouldRetry bool, now, retryAt time.Time) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, err := q.held(taskID, claimID)
	if err != nil {
		return nil, err
	}

	t.ErrorMessage = errMsg
	t.LeaseExpiresAt = nil
	t.ClaimID = ""
	t.UpdatedAt = now
	if shouldRetry && t.CanRetry() {
		t.Status = domain.TaskStatusPending
		t.RetryCount++
		t.NotBefore = retryAt
		t.StartedAt = nil
		t.CompletedAt = nil
	} else {
		t.Status = domain.TaskStatusFailed
		t.CompletedAt = &now
	}
	return clone(t), nil
}

// Cancel moves an active task to cancelled.
func (q *TaskQueue) Cancel(_ context.Context, taskID string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if !t.Status.IsActive() {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotClaimable, taskID)
	}
	t.Status = domain.TaskStatusCancelled
	t.LeaseExpiresAt = nil
	t.ClaimID = ""
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// RecoverExpired lists processing tasks whose lease has ended.
func (q *TaskQueue) RecoverExpired(_ context.Context, now time.Time) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	expired := lo.Filter(lo.Values(q.tasks), func(t *domain.Task, _ int) bool {
		return t.Status == domain.TaskStatusProcessing &&
			t.LeaseExpiresAt != nil && t.LeaseExpiresAt.Before(now)
	})
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].LeaseExpiresAt.Before(*expired[j].LeaseExpiresAt)
	})
	return lo.Map(expired, func(t *domain.Task, _ int) string { return t.ID }), nil
}

// GetTask retrieves a task by ID.
func (q *TaskQueue) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(t), nil
}

// ListTasks returns tasks matching filter, newest first.
func (q *TaskQueue) ListTasks(_ context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var result []domain.Task
	for _, t := range q.tasks {
		if filter.ID != "" && t.ID != filter.ID {
			continue
		}
		if filter.OwnerID != "" && t.OwnerID != filter.OwnerID {
			continue
		}
		if filter.EntityID != "" && t.EntityID != filter.EntityID {
			continue
		}
		if filter.EntityType != "" && t.EntityType != filter.EntityType {
			continue
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, t.Status) {
			continue
		}
		result = append(result, *t)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
