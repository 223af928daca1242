package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestClampPriority(t *testing.T) {
	assert.Equal(t, 1, ClampPriority(-4))
	assert.Equal(t, 1, ClampPriority(0))
	assert.Equal(t, 7, ClampPriority(7))
	assert.Equal(t, 10, ClampPriority(99))
}

func TestTaskType_EntityType(t *testing.T) {
	assert.Equal(t, EntityTypeLink, TaskTypeLinkMetadata.EntityType())
	assert.Equal(t, EntityTypeLink, TaskTypeLinkEmbeddings.EntityType())
	assert.Equal(t, EntityTypeLink, TaskTypeRefreshLinkContent.EntityType())
	assert.Equal(t, EntityTypeNote, TaskTypeNoteEmbeddings.EntityType())
	assert.Equal(t, EntityTypeNote, TaskTypeRefreshNoteContent.EntityType())
}

func TestTaskStatus(t *testing.T) {
	assert.True(t, TaskStatusPending.IsActive())
	assert.True(t, TaskStatusProcessing.IsActive())
	assert.False(t, TaskStatusCompleted.IsActive())
	assert.False(t, TaskStatusFailed.IsActive())
	assert.False(t, TaskStatusCancelled.IsActive())
	assert.False(t, TaskStatus("done").IsValid())
}

func TestTaskRequest_Validate(t *testing.T) {
	valid := TaskRequest{
		OwnerID:    "user-1",
		Type:       TaskTypeNoteEmbeddings,
		EntityType: EntityTypeNote,
		EntityID:   "note-1",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *TaskRequest)
	}{
		{"missing owner", func(r *TaskRequest) { r.OwnerID = "" }},
		{"unknown type", func(r *TaskRequest) { r.Type = "summarise" }},
		{"unknown entity", func(r *TaskRequest) { r.EntityType = "folder" }},
		{"entity mismatch", func(r *TaskRequest) { r.EntityType = EntityTypeLink }},
		{"missing entity id", func(r *TaskRequest) { r.EntityID = "" }},
		{"negative retries", func(r *TaskRequest) { r.MaxRetries = intPtr(-1) }},
		{"unknown payload key", func(r *TaskRequest) { r.Payload = json.RawMessage(`{"force":true}`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.ErrorIs(t, req.Validate(), ErrInvalidInput)
		})
	}
}

func TestTaskRequest_NewTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		req := TaskRequest{OwnerID: "u", Type: TaskTypeLinkMetadata, EntityType: EntityTypeLink, EntityID: "l"}
		task := req.NewTask("t-1", now)

		assert.Equal(t, "t-1", task.ID)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, DefaultPriority, task.Priority)
		assert.Equal(t, DefaultMaxRetries, task.MaxRetries)
		assert.Equal(t, now, task.NotBefore)
		assert.Nil(t, task.StartedAt)
	})

	t.Run("clamps priority and keeps zero retries", func(t *testing.T) {
		req := TaskRequest{
			OwnerID: "u", Type: TaskTypeLinkMetadata, EntityType: EntityTypeLink, EntityID: "l",
			Priority: 42, MaxRetries: intPtr(0),
		}
		task := req.NewTask("t-2", now)

		assert.Equal(t, MaxPriority, task.Priority)
		assert.Equal(t, 0, task.MaxRetries)
		assert.False(t, task.CanRetry())
	})
}

func TestTaskFilter_EffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxTaskListLimit, TaskFilter{}.EffectiveLimit())
	assert.Equal(t, 5, TaskFilter{Limit: 5}.EffectiveLimit())
	assert.Equal(t, MaxTaskListLimit, TaskFilter{Limit: 1000}.EffectiveLimit())
}

func TestRetryDelay(t *testing.T) {
	maxDelay := 60 * time.Second

	assert.Equal(t, time.Second, RetryDelay(0, maxDelay))
	assert.Equal(t, time.Second, RetryDelay(1, maxDelay))
	assert.Equal(t, 2*time.Second, RetryDelay(2, maxDelay))
	assert.Equal(t, 4*time.Second, RetryDelay(3, maxDelay))
	assert.Equal(t, 32*time.Second, RetryDelay(6, maxDelay))
	assert.Equal(t, maxDelay, RetryDelay(7, maxDelay))
	assert.Equal(t, maxDelay, RetryDelay(50, maxDelay))
}

func TestDecodePayload(t *testing.T) {
	t.Run("empty payload decodes to zero value", func(t *testing.T) {
		p, err := DecodePayload(TaskTypeNoteEmbeddings, nil)
		require.NoError(t, err)
		assert.Equal(t, EmbeddingPayload{}, p)
	})

	t.Run("link metadata url override", func(t *testing.T) {
		p, err := DecodePayload(TaskTypeLinkMetadata, json.RawMessage(`{"url":"https://example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, LinkMetadataPayload{URL: "https://example.com"}, p)
	})

	t.Run("refresh defaults to reembed", func(t *testing.T) {
		p, err := DecodePayload(TaskTypeRefreshLinkContent, json.RawMessage(`{}`))
		require.NoError(t, err)
		refresh, ok := p.(RefreshLinkPayload)
		require.True(t, ok)
		assert.True(t, refresh.ShouldReembed())
	})

	t.Run("refresh can skip reembed", func(t *testing.T) {
		p, err := DecodePayload(TaskTypeRefreshLinkContent, json.RawMessage(`{"reembed":false}`))
		require.NoError(t, err)
		assert.False(t, p.(RefreshLinkPayload).ShouldReembed())
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := DecodePayload(TaskTypeLinkMetadata, json.RawMessage(`{"url":`))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := DecodePayload("bogus", nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
