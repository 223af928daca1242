package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// taskQueue implements driven.TaskQueue.
type taskQueue struct {
	store *Store
}

var _ driven.TaskQueue = (*taskQueue)(nil)

const taskColumns = `id, owner_id, task_type, entity_type, entity_id, status, priority,
	payload, result, error_message, retry_count, max_retries, not_before,
	lease_expires_at, started_at, completed_at, created_at, updated_at, claim_id`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Enqueue inserts the task unless an active task with the same key exists.
func (q *taskQueue) Enqueue(ctx context.Context, task *domain.Task) (*domain.Task, bool, error) {
	if task == nil {
		return nil, false, domain.ErrInvalidInput
	}

	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning enqueue: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	existing, err := findActive(ctx, tx, task)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, task_type, entity_type, entity_id, status, priority,
			payload, retry_count, max_retries, not_before, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`, task.ID, task.OwnerID, string(task.Type), string(task.EntityType), task.EntityID,
		string(domain.TaskStatusPending), task.Priority, nullRaw(task.Payload), task.MaxRetries,
		formatTime(task.NotBefore), formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if isUniqueViolation(err) {
		// Another writer won the race for the active slot.
		tx.Rollback() //nolint:errcheck
		existing, findErr := findActive(ctx, q.store.db, task)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%w: task %s", domain.ErrAlreadyExists, task.ID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("inserting task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing enqueue: %w", err)
	}

	created := *task
	created.Status = domain.TaskStatusPending
	created.RetryCount = 0
	return &created, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findActive(ctx context.Context, db queryer, task *domain.Task) (*domain.Task, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = ? AND entity_type = ? AND entity_id = ? AND task_type = ?
			AND status IN ('pending', 'processing')
		LIMIT 1
	`, task.OwnerID, string(task.EntityType), task.EntityID, string(task.Type))

	existing, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return existing, err
}

// ClaimNext moves the best eligible pending task to processing in a single
// statement, so concurrent claimers can never receive the same task.
func (q *taskQueue) ClaimNext(ctx context.Context, ownerID string, now time.Time, lease time.Duration) (*domain.Task, error) {
	ts := formatTime(now)
	args := []any{ts, formatTime(now.Add(lease)), uuid.New().String(), ts, ts}
	ownerClause := ""
	if ownerID != "" {
		ownerClause = "AND owner_id = ?"
		args = append(args, ownerID)
	}

	row := q.store.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = 'processing', started_at = ?, lease_expires_at = ?, claim_id = ?, updated_at = ?
		WHERE status = 'pending' AND id = (
			SELECT id FROM tasks
			WHERE status = 'pending' AND not_before <= ? `+ownerClause+`
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING `+taskColumns, args...)

	task, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming task: %w", err)
	}
	return task, nil
}

// Heartbeat extends the lease of a task still held under claimID.
func (q *taskQueue) Heartbeat(ctx context.Context, taskID, claimID string, until time.Time) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks SET lease_expires_at = ?
		WHERE id = ? AND status = 'processing' AND claim_id = ?
	`, formatTime(until), taskID, claimID)
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}
	return q.checkTransition(ctx, res, taskID)
}

// Complete marks a task still held under claimID completed.
func (q *taskQueue) Complete(ctx context.Context, taskID, claimID string, result json.RawMessage, now time.Time) error {
	ts := formatTime(now)
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'completed', result = ?, error_message = NULL,
			lease_expires_at = NULL, claim_id = NULL, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing' AND claim_id = ?
	`, nullRaw(result), ts, ts, taskID, claimID)
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	return q.checkTransition(ctx, res, taskID)
}

// Fail settles a task still held under claimID as retried or failed.
func (q *taskQueue) Fail(ctx context.Context, taskID, claimID, errMsg string, shouldRetry bool, now, retryAt time.Time) (*domain.Task, error) {
	ts := formatTime(now)
	retry := boolToInt(shouldRetry)
	row := q.store.db.QueryRowContext(ctx, `
		UPDATE tasks SET
			status = CASE WHEN ? AND retry_count < max_retries THEN 'pending' ELSE 'failed' END,
			retry_count = CASE WHEN ? AND retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			not_before = CASE WHEN ? AND retry_count < max_retries THEN ? ELSE not_before END,
			completed_at = CASE WHEN ? AND retry_count < max_retries THEN NULL ELSE ? END,
			started_at = CASE WHEN ? AND retry_count < max_retries THEN NULL ELSE started_at END,
			error_message = ?,
			lease_expires_at = NULL,
			claim_id = NULL,
			updated_at = ?
		WHERE id = ? AND status = 'processing' AND claim_id = ?
		RETURNING `+taskColumns,
		retry, retry, retry, formatTime(retryAt),
		retry, ts, retry, errMsg, ts, taskID, claimID)

	task, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		if _, getErr := q.GetTask(ctx, taskID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotClaimable, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failing task: %w", err)
	}
	return task, nil
}

// Cancel moves an active task to cancelled.
func (q *taskQueue) Cancel(ctx context.Context, taskID string, now time.Time) error {
	ts := formatTime(now)
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'cancelled', lease_expires_at = NULL, claim_id = NULL, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')
	`, ts, ts, taskID)
	if err != nil {
		return fmt.Errorf("cancelling task: %w", err)
	}
	return q.checkTransition(ctx, res, taskID)
}

// checkTransition maps a zero-row update to ErrNotFound or ErrTaskNotClaimable.
func (q *taskQueue) checkTransition(ctx context.Context, res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := q.GetTask(ctx, taskID); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrTaskNotClaimable, taskID)
}

// RecoverExpired lists processing tasks whose lease has ended.
func (q *taskQueue) RecoverExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := q.store.db.QueryContext(ctx, `
		SELECT id FROM tasks
		WHERE status = 'processing' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?
		ORDER BY lease_expires_at
	`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("querying expired leases: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired leases: %w", err)
	}
	return ids, nil
}

// GetTask retrieves a task by ID.
func (q *taskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := q.store.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
	return scanTask(row)
}

// ListTasks returns tasks matching filter, newest first.
func (q *taskQueue) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.ID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.ID)
	}
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
		where = append(where, "status IN ("+placeholders+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, filter.EffectiveLimit())

	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// scanTask scans a row selected with taskColumns.
func scanTask(row scanner) (*domain.Task, error) {
	var (
		task                             domain.Task
		taskType, entityType, status     string
		payload, result, errMsg, claimID sql.NullString
		notBefore, createdAt, updatedAt  string
		leaseExpires, started, completed sql.NullString
	)

	err := row.Scan(&task.ID, &task.OwnerID, &taskType, &entityType, &task.EntityID, &status,
		&task.Priority, &payload, &result, &errMsg, &task.RetryCount, &task.MaxRetries,
		&notBefore, &leaseExpires, &started, &completed, &createdAt, &updatedAt, &claimID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Type = domain.TaskType(taskType)
	task.EntityType = domain.EntityType(entityType)
	task.Status = domain.TaskStatus(status)
	if payload.Valid {
		task.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}
	task.ErrorMessage = errMsg.String
	task.ClaimID = claimID.String
	task.NotBefore = parseTime(notBefore)
	task.LeaseExpiresAt = parseNullableTime(leaseExpires)
	task.StartedAt = parseNullableTime(started)
	task.CompletedAt = parseNullableTime(completed)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)

	return &task, nil
}
