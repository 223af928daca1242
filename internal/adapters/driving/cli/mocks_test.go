package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/stash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/core/services"
)

var epoch = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// mockTaskService records the last request it received.
type mockTaskService struct {
	tasks      []domain.Task
	lastReq    domain.TaskRequest
	lastFilter domain.TaskFilter
	lastOwner  string
	lastMax    int
	cancelled  []string
	created    bool
	err        error
}

func (m *mockTaskService) CreateTask(_ context.Context, req domain.TaskRequest) (*domain.Task, bool, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, false, m.err
	}
	return req.NewTask("task-1", epoch), m.created, nil
}

func (m *mockTaskService) GetTask(_ context.Context, id string) (*domain.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskService) ListTasks(_ context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	m.lastFilter = filter
	return m.tasks, m.err
}

func (m *mockTaskService) RunTasks(_ context.Context, ownerID string, maxTasks int) (*domain.RunSummary, error) {
	m.lastOwner = ownerID
	m.lastMax = maxTasks
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RunSummary{Processed: []string{"t1", "t2"}, Failed: []string{"t3"}}, nil
}

func (m *mockTaskService) CancelTask(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

type mockSearchService struct {
	results   []domain.SearchResult
	semantic  []domain.SemanticResult
	intent    *domain.QueryIntent
	lastOwner string
	lastQuery string
	lastOpts  domain.SearchOptions
	lastSem   domain.SemanticSearchOptions
}

func (m *mockSearchService) Search(_ context.Context, ownerID, query string, opts domain.SearchOptions) ([]domain.SearchResult, *domain.QueryIntent, error) {
	m.lastOwner, m.lastQuery, m.lastOpts = ownerID, query, opts
	intent := m.intent
	if intent == nil {
		intent = &domain.QueryIntent{Kind: domain.IntentSearch}
	}
	return m.results, intent, nil
}

func (m *mockSearchService) SemanticSearch(_ context.Context, ownerID, query string, opts domain.SemanticSearchOptions) ([]domain.SemanticResult, error) {
	m.lastOwner, m.lastQuery, m.lastSem = ownerID, query, opts
	return m.semantic, nil
}

type mockDocumentService struct {
	lastLink driving.LinkInput
	lastNote driving.NoteInput
}

func (m *mockDocumentService) SaveLink(_ context.Context, in driving.LinkInput) (*domain.Link, []domain.Task, error) {
	m.lastLink = in
	link := &domain.Link{ID: "link-1", OwnerID: in.OwnerID, URL: in.URL, Title: in.Title}
	tasks := []domain.Task{
		{ID: "t-meta", Type: domain.TaskTypeLinkMetadata},
		{ID: "t-emb", Type: domain.TaskTypeLinkEmbeddings},
	}
	return link, tasks, nil
}

func (m *mockDocumentService) SaveNote(_ context.Context, in driving.NoteInput) (*domain.Note, []domain.Task, error) {
	m.lastNote = in
	note := &domain.Note{ID: "note-1", OwnerID: in.OwnerID, Title: in.Title, Content: in.Content, WordCount: 3}
	return note, []domain.Task{{ID: "t-note", Type: domain.TaskTypeNoteEmbeddings}}, nil
}

type mockEmbeddingGenerator struct{}

func (mockEmbeddingGenerator) Generate(context.Context, driving.EmbeddingRequest) (*driving.EmbeddingResponse, error) {
	return &driving.EmbeddingResponse{}, nil
}

type testServices struct {
	tasks     *mockTaskService
	search    *mockSearchService
	documents *mockDocumentService
	settings  *services.SettingsService
}

// setupTestServices injects mocks into the package services and returns a
// restore function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		tasks:     &mockTaskService{created: true},
		search:    &mockSearchService{},
		documents: &mockDocumentService{},
		settings:  services.NewSettingsService(memory.NewConfigStore(), "/tmp/stash-test"),
	}

	origTasks, origSearch, origDocs := taskService, searchService, documentService
	origEmb, origDispatcher, origSettings := embeddingService, dispatcher, settingsService
	origUser := userID

	taskService = ts.tasks
	searchService = ts.search
	documentService = ts.documents
	embeddingService = mockEmbeddingGenerator{}
	settingsService = ts.settings

	return ts, func() {
		taskService, searchService, documentService = origTasks, origSearch, origDocs
		embeddingService, dispatcher, settingsService = origEmb, origDispatcher, origSettings
		userID = origUser
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag to its default so state does not leak
// between tests that share rootCmd.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs rootCmd with args and returns its combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
