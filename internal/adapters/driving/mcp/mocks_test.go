package mcp

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	intent   *domain.QueryIntent
	semantic []domain.SemanticResult
	err      error

	lastOwner string
	lastOpts  domain.SearchOptions
	lastSem   domain.SemanticSearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	ownerID, _ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, *domain.QueryIntent, error) {
	m.lastOwner = ownerID
	m.lastOpts = opts
	return m.results, m.intent, m.err
}

func (m *mockSearchService) SemanticSearch(
	_ context.Context,
	ownerID, _ string,
	opts domain.SemanticSearchOptions,
) ([]domain.SemanticResult, error) {
	m.lastOwner = ownerID
	m.lastSem = opts
	return m.semantic, m.err
}

// mockTaskService is a mock implementation of driving.TaskService.
type mockTaskService struct {
	tasks   []domain.Task
	created bool
	err     error

	lastReq    domain.TaskRequest
	lastFilter domain.TaskFilter
}

func (m *mockTaskService) CreateTask(_ context.Context, req domain.TaskRequest) (*domain.Task, bool, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, false, m.err
	}
	return req.NewTask("task-1", epoch), m.created, nil
}

func (m *mockTaskService) GetTask(_ context.Context, id string) (*domain.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
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

func (m *mockTaskService) RunTasks(_ context.Context, _ string, _ int) (*domain.RunSummary, error) {
	return &domain.RunSummary{}, m.err
}

func (m *mockTaskService) CancelTask(_ context.Context, _ string) error {
	return m.err
}
