package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

type pipelineFixture struct {
	docs      *memory.DocumentStore
	queue     *memory.TaskQueue
	fetcher   *mockFetcher
	extractor *mockExtractor
	embedder  *mockEmbedder
	pipeline  *Pipeline
	tasks     *TaskService
	clock     *fakeClock
}

func newPipelineFixture(t *testing.T, docs driven.DocumentStore) *pipelineFixture {
	t.Helper()
	mem := memory.NewDocumentStore()
	if docs == nil {
		docs = mem
	}
	f := &pipelineFixture{
		docs:      mem,
		queue:     memory.NewTaskQueue(),
		fetcher:   &mockFetcher{},
		extractor: &mockExtractor{},
		embedder:  newMockEmbedder(),
		clock:     &fakeClock{now: epoch},
	}
	f.pipeline = NewPipeline(docs, f.fetcher, f.extractor, &paragraphChunker{}, f.embedder)
	f.pipeline.now = f.clock.Now
	f.tasks = NewTaskService(f.queue, f.pipeline, domain.WorkerSettings{Lease: time.Minute, MaxBackoff: time.Minute})
	f.tasks.now = f.clock.Now
	t.Cleanup(f.tasks.Close)
	return f
}

// runOne creates a task for req and runs it to settlement.
func (f *pipelineFixture) runOne(t *testing.T, req domain.TaskRequest) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task, created, err := f.tasks.CreateTask(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.tasks.RunTasks(ctx, req.OwnerID, 1)
	require.NoError(t, err)

	settled, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	return settled
}

const longParagraph = "Goroutines are cheap to start and the scheduler multiplexes them onto threads."

func TestPipeline_NoteTooShortFailsWithoutRetry(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveNote(ctx, &domain.Note{ID: "n1", OwnerID: "u1", Content: strings.Repeat("a", 30)}))

	task := f.runOne(t, noteRequest("u1", "n1"))
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, 0, task.RetryCount)
	assert.Contains(t, task.ErrorMessage, "content too short")
	assert.Equal(t, 0, f.embedder.calls)

	note, err := f.docs.GetNote(ctx, "n1")
	require.NoError(t, err)
	assert.Nil(t, note.Embedding)
}

func TestPipeline_NoteEmbeddings(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	first := longParagraph
	second := "Channels carry values between goroutines and synchronise their progress."
	f.embedder.vectors[first] = []float32{1, 0, 0}
	f.embedder.vectors[second] = []float32{0, 1, 0}
	require.NoError(t, f.docs.SaveNote(ctx, &domain.Note{ID: "n1", OwnerID: "u1", Content: first + "\n\n" + second}))

	task := f.runOne(t, noteRequest("u1", "n1"))
	require.Equal(t, domain.TaskStatusCompleted, task.Status)

	var result domain.EmbeddingResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 3, result.Dimensions)
	assert.Empty(t, result.ChunkError)

	note, err := f.docs.GetNote(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, note.Embedding)
	assert.InDelta(t, 0.7071, note.Embedding.Vector[0], 1e-3)
	assert.InDelta(t, 0.7071, note.Embedding.Vector[1], 1e-3)
	assert.Equal(t, 21, note.WordCount)

	chunks, err := f.docs.GetChunks(ctx, domain.EntityTypeNote, "n1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "n1-c0", chunks[0].ID)
	assert.Equal(t, first, chunks[0].Text)
	assert.Equal(t, second, chunks[1].Text)
	require.NotNil(t, chunks[1].Embedding)
	assert.Equal(t, []float32{0, 1, 0}, chunks[1].Embedding.Vector)
}

func TestPipeline_NoteReembedReplacesChunks(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveNote(ctx, &domain.Note{
		ID: "n1", OwnerID: "u1", Content: longParagraph + "\n\n" + longParagraph + " Again.",
	}))
	require.Equal(t, domain.TaskStatusCompleted, f.runOne(t, noteRequest("u1", "n1")).Status)

	require.NoError(t, f.docs.SaveNote(ctx, &domain.Note{ID: "n1", OwnerID: "u1", Content: longParagraph}))
	require.Equal(t, domain.TaskStatusCompleted, f.runOne(t, noteRequest("u1", "n1")).Status)

	chunks, err := f.docs.GetChunks(ctx, domain.EntityTypeNote, "n1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestPipeline_ChunkWriteFailureKeepsAggregate(t *testing.T) {
	mem := memory.NewDocumentStore()
	f := newPipelineFixture(t, &failingChunkStore{DocumentStore: mem})
	f.docs = mem
	ctx := context.Background()

	require.NoError(t, mem.SaveNote(ctx, &domain.Note{ID: "n1", OwnerID: "u1", Content: longParagraph}))

	task := f.runOne(t, noteRequest("u1", "n1"))
	require.Equal(t, domain.TaskStatusCompleted, task.Status)

	var result domain.EmbeddingResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, "disk full", result.ChunkError)

	note, err := mem.GetNote(ctx, "n1")
	require.NoError(t, err)
	assert.NotNil(t, note.Embedding)
}

func TestPipeline_EmbeddingErrorIsRetried(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()
	f.embedder.err = fmt.Errorf("%w: 503", domain.ErrEmbeddingUnavailable)

	require.NoError(t, f.docs.SaveNote(ctx, &domain.Note{ID: "n1", OwnerID: "u1", Content: longParagraph}))

	task := f.runOne(t, noteRequest("u1", "n1"))
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.Equal(t, epoch.Add(time.Second), task.NotBefore)
}

func TestPipeline_LinkTooShort(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{ID: "l1", OwnerID: "u1", URL: "https://go.dev", Title: "Go"}))

	task := f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkEmbeddings))
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, 0, task.RetryCount)
}

func TestPipeline_LinkEmbeddings(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{
		ID: "l1", OwnerID: "u1", URL: "https://go.dev", Title: "The Go Blog", Description: "News from the team",
	}))
	f.embedder.vectors["The Go Blog News from the team"] = []float32{0, 0, 1}

	task := f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkEmbeddings))
	require.Equal(t, domain.TaskStatusCompleted, task.Status)

	link, err := f.docs.GetLink(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, link.Embedding)
	assert.Equal(t, []float32{0, 0, 1}, link.Embedding.Vector)
	assert.Equal(t, domain.EmbeddingProvider("mock"), link.Embedding.Provider)
}

func TestPipeline_LinkMetadata(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.extractor.extraction = driven.Extraction{
		Title:       "Page title",
		Description: "Fetched description",
		Favicon:     "https://go.dev/favicon.ico",
		SiteName:    "go.dev",
		ContentType: domain.ContentTypeArticle,
		FullText:    "full body",
	}
	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{
		ID: "l1", OwnerID: "u1", URL: "https://go.dev/blog", Title: "Mine", SiteName: "old",
	}))

	task := f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkMetadata))
	require.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, []string{"https://go.dev/blog"}, f.fetcher.urls)

	link, err := f.docs.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Mine", link.Title)
	assert.Empty(t, link.Description)
	assert.Equal(t, "Page title", link.MetaTitle)
	assert.Equal(t, "Fetched description", link.MetaDescription)
	assert.Equal(t, "Mine Fetched description", link.EmbeddingText())
	assert.Equal(t, "go.dev", link.SiteName)
	assert.Equal(t, "https://go.dev/favicon.ico", link.Favicon)
	assert.Empty(t, link.FullContent)

	var result domain.LinkMetadataResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	require.NotEmpty(t, result.FollowUpTaskID)

	follow, err := f.tasks.GetTask(ctx, result.FollowUpTaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeLinkEmbeddings, follow.Type)
	assert.Equal(t, domain.TaskStatusPending, follow.Status)
}

func TestPipeline_LinkMetadataUnchangedTextQueuesNothing(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.extractor.extraction = driven.Extraction{Title: "Other", Description: "Other"}
	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{
		ID: "l1", OwnerID: "u1", URL: "https://go.dev", Title: "Mine", Description: "Kept",
	}))

	task := f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkMetadata))
	require.Equal(t, domain.TaskStatusCompleted, task.Status)

	var result domain.LinkMetadataResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Empty(t, result.FollowUpTaskID)
}

func TestPipeline_RefreshReplacesPageMetadata(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{ID: "l1", OwnerID: "u1", URL: "https://go.dev"}))

	f.extractor.extraction = driven.Extraction{Title: "Old page title", Description: "Old description"}
	require.Equal(t, domain.TaskStatusCompleted,
		f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkMetadata)).Status)

	f.extractor.extraction = driven.Extraction{Title: "New page title", Description: "New description"}
	req := linkRequest("u1", "l1", domain.TaskTypeRefreshLinkContent)
	req.Payload = json.RawMessage(`{"reembed": false}`)
	req.Priority = domain.MaxPriority // ahead of the queued link_embeddings
	task := f.runOne(t, req)
	require.Equal(t, domain.TaskStatusCompleted, task.Status)

	link, err := f.docs.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, link.Title)
	assert.Equal(t, "New page title", link.MetaTitle)
	assert.Equal(t, "New description", link.MetaDescription)
	assert.Equal(t, "New page title", link.DisplayTitle())

	var result domain.LinkMetadataResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Equal(t, "New page title", result.Title)
	assert.Equal(t, "New description", result.Description)
}

func TestPipeline_RefreshLinkContent(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.extractor.extraction = driven.Extraction{
		Title:     "Title",
		FullText:  strings.Repeat("x", maxEmbeddingText+10),
		WordCount: 321,
		Author:    "Rob",
	}
	require.NoError(t, f.docs.SaveLink(ctx, &domain.Link{ID: "l1", OwnerID: "u1", URL: "https://go.dev", Title: "Mine"}))

	req := linkRequest("u1", "l1", domain.TaskTypeRefreshLinkContent)
	req.Payload = json.RawMessage(`{"url": "https://go.dev/doc", "reembed": false}`)
	task := f.runOne(t, req)
	require.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, []string{"https://go.dev/doc"}, f.fetcher.urls)

	link, err := f.docs.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.Len(t, link.FullContent, maxEmbeddingText)
	assert.Equal(t, 321, link.WordCount)
	assert.Equal(t, "Rob", link.Author)

	var result domain.LinkMetadataResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Empty(t, result.FollowUpTaskID)
}

func TestPipeline_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus domain.TaskStatus
		wantRetry  int
	}{
		{"permanent", fmt.Errorf("%w: status 404", domain.ErrPermanent), domain.TaskStatusFailed, 0},
		{"transient", errors.New("connection reset"), domain.TaskStatusPending, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, nil)
			f.fetcher.err = tt.err
			require.NoError(t, f.docs.SaveLink(context.Background(), &domain.Link{ID: "l1", OwnerID: "u1", URL: "https://x.dev"}))

			task := f.runOne(t, linkRequest("u1", "l1", domain.TaskTypeLinkMetadata))
			assert.Equal(t, tt.wantStatus, task.Status)
			assert.Equal(t, tt.wantRetry, task.RetryCount)
			assert.Contains(t, task.ErrorMessage, "fetch https://x.dev")
		})
	}
}

func TestPipeline_MissingDocument(t *testing.T) {
	f := newPipelineFixture(t, nil)

	task := f.runOne(t, noteRequest("u1", "ghost"))
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "not found")
}

func TestPipeline_UnknownTaskType(t *testing.T) {
	f := newPipelineFixture(t, nil)
	_, err := f.pipeline.Run(context.Background(), &domain.Task{Type: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
