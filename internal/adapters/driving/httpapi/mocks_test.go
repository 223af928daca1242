package httpapi

import (
	"context"
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

var epoch = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type stubTasks struct {
	tasks     map[string]*domain.Task
	summary   *domain.RunSummary
	err       error
	cancelErr error

	lastReq    domain.TaskRequest
	lastFilter domain.TaskFilter
	lastOwner  string
	lastMax    int
}

func (s *stubTasks) CreateTask(_ context.Context, req domain.TaskRequest) (*domain.Task, bool, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, false, s.err
	}
	return req.NewTask("t1", epoch), true, nil
}

func (s *stubTasks) GetTask(_ context.Context, id string) (*domain.Task, error) {
	if t, ok := s.tasks[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubTasks) ListTasks(_ context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	s.lastFilter = filter
	return nil, s.err
}

func (s *stubTasks) RunTasks(_ context.Context, ownerID string, maxTasks int) (*domain.RunSummary, error) {
	s.lastOwner = ownerID
	s.lastMax = maxTasks
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func (s *stubTasks) CancelTask(_ context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.TaskStatusCancelled
	return nil
}

type stubSearch struct {
	results  []domain.SearchResult
	semantic []domain.SemanticResult
	err      error

	lastOpts domain.SemanticSearchOptions
}

func (s *stubSearch) Search(
	_ context.Context, _, query string, _ domain.SearchOptions,
) ([]domain.SearchResult, *domain.QueryIntent, error) {
	return s.results, &domain.QueryIntent{Kind: domain.IntentSearch, SearchTerms: []string{query}}, s.err
}

func (s *stubSearch) SemanticSearch(
	_ context.Context, _, _ string, opts domain.SemanticSearchOptions,
) ([]domain.SemanticResult, error) {
	s.lastOpts = opts
	return s.semantic, s.err
}

type stubDocuments struct {
	err error
}

func (s *stubDocuments) SaveLink(_ context.Context, in driving.LinkInput) (*domain.Link, []domain.Task, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	link := &domain.Link{ID: "l1", OwnerID: in.OwnerID, URL: in.URL, Title: in.Title}
	return link, []domain.Task{{ID: "t1", Type: domain.TaskTypeLinkMetadata}, {ID: "t2", Type: domain.TaskTypeLinkEmbeddings}}, nil
}

func (s *stubDocuments) SaveNote(_ context.Context, in driving.NoteInput) (*domain.Note, []domain.Task, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return &domain.Note{ID: "n1", OwnerID: in.OwnerID, Title: in.Title, Content: in.Content}, nil, nil
}

type stubEmbeddings struct {
	lastReq driving.EmbeddingRequest
	err     error
}

func (s *stubEmbeddings) Generate(_ context.Context, req driving.EmbeddingRequest) (*driving.EmbeddingResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	resp := &driving.EmbeddingResponse{Model: "m", Provider: domain.EmbeddingProviderLocal}
	for i, text := range req.Texts {
		resp.Embeddings = append(resp.Embeddings, driving.GeneratedEmbedding{
			Text: text, Embedding: []float32{1, 0}, ChunkIndex: i,
		})
	}
	return resp, nil
}
