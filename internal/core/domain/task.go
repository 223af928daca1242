package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskType identifies the pipeline stage a task runs.
type TaskType string

// Supported task types.
const (
	TaskTypeLinkMetadata       TaskType = "link_metadata"
	TaskTypeLinkEmbeddings     TaskType = "link_embeddings"
	TaskTypeNoteEmbeddings     TaskType = "note_embeddings"
	TaskTypeRefreshLinkContent TaskType = "refresh_link_content"
	TaskTypeRefreshNoteContent TaskType = "refresh_note_content"
)

// AllTaskTypes lists every supported task type.
var AllTaskTypes = []TaskType{
	TaskTypeLinkMetadata,
	TaskTypeLinkEmbeddings,
	TaskTypeNoteEmbeddings,
	TaskTypeRefreshLinkContent,
	TaskTypeRefreshNoteContent,
}

// IsValid returns true if the task type is recognised.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeLinkMetadata, TaskTypeLinkEmbeddings, TaskTypeNoteEmbeddings,
		TaskTypeRefreshLinkContent, TaskTypeRefreshNoteContent:
		return true
	default:
		return false
	}
}

// EntityType returns the kind of document the task type operates on.
func (t TaskType) EntityType() EntityType {
	switch t {
	case TaskTypeNoteEmbeddings, TaskTypeRefreshNoteContent:
		return EntityTypeNote
	default:
		return EntityTypeLink
	}
}

// EntityType identifies the document kind a task targets.
type EntityType string

// Supported entity types.
const (
	EntityTypeLink EntityType = "link"
	EntityTypeNote EntityType = "note"
)

// IsValid returns true if the entity type is recognised.
func (e EntityType) IsValid() bool {
	return e == EntityTypeLink || e == EntityTypeNote
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task lifecycle states.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid returns true if the status is recognised.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the task still occupies its idempotency slot.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusPending || s == TaskStatusProcessing
}

// Task defaults and bounds.
const (
	MinPriority       = 1
	MaxPriority       = 10
	DefaultPriority   = 5
	DefaultMaxRetries = 3
	MaxTaskListLimit  = 100
)

// ClampPriority bounds a priority to [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// Task is a unit of background work.
type Task struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`

	// OwnerID is the user the task belongs to.
	OwnerID string `json:"owner_id"`

	// Type selects the pipeline stage.
	Type TaskType `json:"task_type"`

	// EntityType and EntityID identify the target document.
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Priority is in [1,10]; higher runs first.
	Priority int `json:"priority"`

	// Payload is the encoded typed payload for Type.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Result is the encoded typed result, set on completion.
	Result json.RawMessage `json:"result,omitempty"`

	// ErrorMessage holds the last failure.
	ErrorMessage string `json:"error_message,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// NotBefore is the earliest time the task may be claimed.
	NotBefore time.Time `json:"not_before"`

	// LeaseExpiresAt is set while processing; an expired lease is swept back to pending.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	// ClaimID identifies the current claim. It changes on every claim and is
	// cleared when the task is settled.
	ClaimID string `json:"claim_id,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CanRetry reports whether another attempt is allowed.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// IdempotencyKey returns the tuple that may have at most one active task.
func (t *Task) IdempotencyKey() string {
	return t.OwnerID + "|" + string(t.EntityType) + "|" + t.EntityID + "|" + string(t.Type)
}

// TaskRequest describes a task to enqueue.
type TaskRequest struct {
	OwnerID    string
	Type       TaskType
	EntityType EntityType
	EntityID   string
	Payload    json.RawMessage

	// Priority defaults to DefaultPriority when zero and is clamped otherwise.
	Priority int

	// MaxRetries defaults to DefaultMaxRetries when nil.
	MaxRetries *int
}

// Validate checks required fields and decodes the payload for its type.
func (r *TaskRequest) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, r.Type)
	}
	if !r.EntityType.IsValid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, r.EntityType)
	}
	if r.Type.EntityType() != r.EntityType {
		return fmt.Errorf("%w: task type %s does not apply to %s", ErrInvalidInput, r.Type, r.EntityType)
	}
	if r.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}
	if _, err := DecodePayload(r.Type, r.Payload); err != nil {
		return err
	}
	return nil
}

// NewTask builds a pending task from a validated request.
func (r *TaskRequest) NewTask(id string, now time.Time) *Task {
	priority := r.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	maxRetries := DefaultMaxRetries
	if r.MaxRetries != nil {
		maxRetries = *r.MaxRetries
	}
	return &Task{
		ID:         id,
		OwnerID:    r.OwnerID,
		Type:       r.Type,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Status:     TaskStatusPending,
		Priority:   ClampPriority(priority),
		Payload:    r.Payload,
		MaxRetries: maxRetries,
		NotBefore:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TaskFilter narrows ListTasks. Zero-valued fields are ignored.
type TaskFilter struct {
	ID         string
	OwnerID    string
	EntityID   string
	EntityType EntityType
	Statuses   []TaskStatus

	// Limit is capped at MaxTaskListLimit.
	Limit int
}

// EffectiveLimit returns the row cap for the filter.
func (f TaskFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxTaskListLimit {
		return MaxTaskListLimit
	}
	return f.Limit
}

// RetryDelay returns the backoff before attempt number retryCount (1-based):
// 1s, 2s, 4s, ... bounded by maxDelay.
func RetryDelay(retryCount int, maxDelay time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := time.Second
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// RunSummary reports the outcome of a bounded worker run.
type RunSummary struct {
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
}
