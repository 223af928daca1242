package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/stash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

var epoch = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService. Texts listed in vectors
// get that vector; everything else gets fallback.
type mockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{1, 0, 0},
	}
}

func (m *mockEmbedder) embedding(text string) domain.Embedding {
	vec, ok := m.vectors[text]
	if !ok {
		vec = m.fallback
	}
	return domain.Embedding{Vector: vec, Provider: "mock", Model: "m"}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.Embedding{}, m.err
	}
	return m.embedding(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([]domain.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		out[i] = m.embedding(t)
	}
	return out, nil
}

func (m *mockEmbedder) Provider() domain.EmbeddingProvider { return "mock" }
func (m *mockEmbedder) Dimensions() int                    { return len(m.fallback) }
func (m *mockEmbedder) ModelName() string                  { return "m" }
func (m *mockEmbedder) Ping(_ context.Context) error       { return m.err }
func (m *mockEmbedder) Close() error                       { return nil }

// mockFetcher implements driven.PageFetcher.
type mockFetcher struct {
	mu   sync.Mutex
	err  error
	urls []string
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string, _ time.Duration) (*driven.FetchedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, rawURL)
	if m.err != nil {
		return nil, m.err
	}
	return &driven.FetchedPage{URL: rawURL, StatusCode: 200, ContentType: "text/html", Body: []byte("<html></html>")}, nil
}

// mockExtractor implements driven.ContentExtractor.
type mockExtractor struct {
	extraction driven.Extraction
	err        error
}

func (m *mockExtractor) Extract(_ *driven.FetchedPage) (*driven.Extraction, error) {
	if m.err != nil {
		return nil, m.err
	}
	ex := m.extraction
	return &ex, nil
}

// paragraphChunker implements driven.Chunker by splitting on blank lines.
type paragraphChunker struct {
	err error
}

func (c *paragraphChunker) Name() string { return "paragraph" }

func (c *paragraphChunker) Split(_ context.Context, text string, _ domain.ChunkOptions) ([]domain.TextChunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	var chunks []domain.TextChunk
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		start := strings.Index(text[offset:], part) + offset
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, domain.TextChunk{
				ID:        fmt.Sprintf("c%d", len(chunks)),
				Text:      part,
				Index:     len(chunks),
				StartChar: start,
				EndChar:   start + len(part),
			})
		}
		offset = start + len(part)
	}
	return chunks, nil
}

// failingChunkStore rejects chunk writes.
type failingChunkStore struct {
	*memory.DocumentStore
}

func (s *failingChunkStore) ReplaceChunks(context.Context, domain.EntityType, string, []domain.Chunk) error {
	return errors.New("disk full")
}

// runnerFunc adapts a function to stageRunner.
type runnerFunc func(ctx context.Context, task *domain.Task) (json.RawMessage, error)

func (f runnerFunc) Run(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
	return f(ctx, task)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func linkRequest(owner, linkID string, taskType domain.TaskType) domain.TaskRequest {
	return domain.TaskRequest{
		OwnerID:    owner,
		Type:       taskType,
		EntityType: domain.EntityTypeLink,
		EntityID:   linkID,
	}
}

func noteRequest(owner, noteID string) domain.TaskRequest {
	return domain.TaskRequest{
		OwnerID:    owner,
		Type:       domain.TaskTypeNoteEmbeddings,
		EntityType: domain.EntityTypeNote,
		EntityID:   noteID,
	}
}
