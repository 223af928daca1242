package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/logger"
)

// Ensure TaskService implements the interface.
var _ driving.TaskService = (*TaskService)(nil)

// DefaultRunLimit is the number of tasks RunTasks processes when asked for zero.
const DefaultRunLimit = 10

// stageRunner executes one claimed task.
type stageRunner interface {
	Run(ctx context.Context, task *domain.Task) (json.RawMessage, error)
}

// TaskService creates, runs and settles tasks. Claimed tasks are run by the
// pipeline while a heartbeat keeps their lease alive.
type TaskService struct {
	queue    driven.TaskQueue
	pipeline stageRunner
	cfg      domain.WorkerSettings
	now      func() time.Time

	mu     sync.Mutex
	waker  func()
	timers map[string]*time.Timer
}

// NewTaskService creates a task service. A *Pipeline is given this service
// as its follow-up task creator.
func NewTaskService(queue driven.TaskQueue, pipeline stageRunner, cfg domain.WorkerSettings) *TaskService {
	defaults := domain.DefaultSettings().Worker
	if cfg.Lease <= 0 {
		cfg.Lease = defaults.Lease
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	s := &TaskService{
		queue:    queue,
		pipeline: pipeline,
		cfg:      cfg,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
	if p, ok := pipeline.(*Pipeline); ok {
		p.SetTaskCreator(s)
	}
	return s
}

// SetWaker registers the function called when new work becomes claimable.
func (s *TaskService) SetWaker(wake func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waker = wake
}

func (s *TaskService) wake() {
	s.mu.Lock()
	wake := s.waker
	s.mu.Unlock()
	if wake != nil {
		wake()
	}
}

// CreateTask validates and enqueues a task.
func (s *TaskService) CreateTask(ctx context.Context, req domain.TaskRequest) (*domain.Task, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	task := req.NewTask(uuid.New().String(), s.now())
	stored, created, err := s.queue.Enqueue(ctx, task)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue task: %w", err)
	}

	if created {
		logger.L().Info("task created",
			"task_id", stored.ID, "task_type", stored.Type, "entity_id", stored.EntityID, "status", stored.Status)
		s.wake()
	} else {
		logger.Debug("task %s already active for %s %s", stored.ID, stored.EntityType, stored.EntityID)
	}
	return stored, created, nil
}

// GetTask retrieves a task by ID.
func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.queue.GetTask(ctx, id)
}

// ListTasks returns matching tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, st)
		}
	}
	if filter.EntityType != "" && !filter.EntityType.IsValid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidInput, filter.EntityType)
	}
	tasks, err := s.queue.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// CancelTask cancels a pending or processing task.
func (s *TaskService) CancelTask(ctx context.Context, id string) error {
	if err := s.queue.Cancel(ctx, id, s.now()); err != nil {
		return err
	}
	s.stopTimer(id)
	logger.L().Info("task cancelled", "task_id", id, "status", domain.TaskStatusCancelled)
	return nil
}

// RunTasks claims and processes up to maxTasks tasks in the calling goroutine.
func (s *TaskService) RunTasks(ctx context.Context, ownerID string, maxTasks int) (*domain.RunSummary, error) {
	if maxTasks <= 0 {
		maxTasks = DefaultRunLimit
	}
	summary := &domain.RunSummary{Processed: []string{}, Failed: []string{}}
	for range maxTasks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		task, err := s.claim(ctx, ownerID)
		if err != nil {
			return summary, err
		}
		if task == nil {
			break
		}
		if s.execute(ctx, task) {
			summary.Processed = append(summary.Processed, task.ID)
		} else {
			summary.Failed = append(summary.Failed, task.ID)
		}
	}
	return summary, nil
}

func (s *TaskService) claim(ctx context.Context, ownerID string) (*domain.Task, error) {
	task, err := s.queue.ClaimNext(ctx, ownerID, s.now(), s.cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	if task != nil {
		s.stopTimer(task.ID)
		logger.L().Debug("task claimed",
			"task_id", task.ID, "task_type", task.Type, "status", task.Status, "retry_count", task.RetryCount)
	}
	return task, nil
}

// execute runs a claimed task and settles it. It reports whether the task
// completed. Settlement uses a context that outlives cancellation of ctx so
// an interrupted task is re-queued instead of left processing. Losing the
// lease cancels the stage: the task may already belong to another worker.
func (s *TaskService) execute(ctx context.Context, task *domain.Task) bool {
	settleCtx := context.WithoutCancel(ctx)

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)

	hbCtx, stopHeartbeat := context.WithCancel(runCtx)
	var hb sync.WaitGroup
	hb.Add(1)
	go func() {
		defer hb.Done()
		if err := s.heartbeat(hbCtx, task); err != nil {
			logger.L().Warn("heartbeat failed, abandoning task",
				"task_id", task.ID, "task_type", task.Type, "error", err)
			cancelRun(fmt.Errorf("%w: %w", domain.ErrLeaseExpired, err))
		}
	}()

	started := s.now()
	result, err := s.pipeline.Run(runCtx, task)
	stopHeartbeat()
	hb.Wait()

	if cause := context.Cause(runCtx); err == nil && errors.Is(cause, domain.ErrLeaseExpired) {
		err = cause
	}
	if err == nil {
		if cerr := s.queue.Complete(settleCtx, task.ID, task.ClaimID, result, s.now()); cerr != nil {
			if errors.Is(cerr, domain.ErrTaskNotClaimable) {
				logger.L().Warn("task claim lost before completion", "task_id", task.ID)
			} else {
				logger.L().Error("complete task failed", "task_id", task.ID, "error", cerr)
			}
			return false
		}
		logger.L().Info("task completed",
			"task_id", task.ID, "task_type", task.Type, "status", domain.TaskStatusCompleted,
			"duration", s.now().Sub(started))
		return true
	}

	s.fail(settleCtx, task, err)
	return false
}

// fail records err on the task and re-queues it with backoff when the
// error is transient and retries remain. A claim that was lost is left to
// its new holder.
func (s *TaskService) fail(ctx context.Context, task *domain.Task, cause error) {
	retry := domain.IsRetryable(cause)
	delay := domain.RetryDelay(task.RetryCount+1, s.cfg.MaxBackoff)
	now := s.now()

	updated, err := s.queue.Fail(ctx, task.ID, task.ClaimID, cause.Error(), retry, now, now.Add(delay))
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotClaimable) {
			logger.L().Error("fail task failed", "task_id", task.ID, "error", err)
		}
		return
	}

	logger.L().Warn("task failed",
		"task_id", updated.ID, "task_type", updated.Type, "status", updated.Status,
		"retry_count", updated.RetryCount, "retryable", retry, "error", cause.Error())
	if updated.Status == domain.TaskStatusPending {
		s.scheduleRetry(updated.ID, delay)
	}
}

// heartbeat extends the lease every third of its length until ctx ends.
// It returns the first error, after which the claim can no longer be trusted.
func (s *TaskService) heartbeat(ctx context.Context, task *domain.Task) error {
	ticker := time.NewTicker(s.cfg.Lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.queue.Heartbeat(ctx, task.ID, task.ClaimID, s.now().Add(s.cfg.Lease))
			if err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

// RecoverExpired fails every processing task whose lease ran out, so it is
// retried or given up like any other transient failure.
func (s *TaskService) RecoverExpired(ctx context.Context) (int, error) {
	ids, err := s.queue.RecoverExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("recover expired: %w", err)
	}
	for _, id := range ids {
		task, err := s.queue.GetTask(ctx, id)
		if err != nil {
			continue
		}
		logger.L().Warn("lease expired", "task_id", id, "task_type", task.Type)
		s.fail(ctx, task, domain.ErrLeaseExpired)
	}
	return len(ids), nil
}

// scheduleRetry wakes the dispatcher when the backoff ends. The timer is
// advisory: polling picks the task up regardless.
func (s *TaskService) scheduleRetry(taskID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[taskID]; ok {
		t.Stop()
	}
	s.timers[taskID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, taskID)
		s.mu.Unlock()
		s.wake()
	})
}

func (s *TaskService) stopTimer(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[taskID]; ok {
		t.Stop()
		delete(s.timers, taskID)
	}
}

// Close stops pending retry timers.
func (s *TaskService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
