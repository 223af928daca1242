package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

// Ensure EmbeddingsService implements the interface.
var _ driving.EmbeddingGenerator = (*EmbeddingsService)(nil)

// EmbeddingsService exposes raw embedding generation, optionally chunking
// each text first.
type EmbeddingsService struct {
	embedder driven.EmbeddingService
	chunker  driven.Chunker
}

// NewEmbeddingsService creates an embeddings service.
func NewEmbeddingsService(embedder driven.EmbeddingService, chunker driven.Chunker) *EmbeddingsService {
	return &EmbeddingsService{embedder: embedder, chunker: chunker}
}

// Generate embeds req.Texts. With req.Chunk each text is split first and
// ChunkIndex is the chunk's position within its text; otherwise it is the
// text's position in the request.
func (s *EmbeddingsService) Generate(ctx context.Context, req driving.EmbeddingRequest) (*driving.EmbeddingResponse, error) {
	if len(req.Texts) == 0 {
		return nil, fmt.Errorf("%w: texts are required", domain.ErrInvalidInput)
	}
	if req.ChunkSize < 0 || req.ChunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk size and overlap must not be negative", domain.ErrInvalidInput)
	}
	opts := domain.NoteChunkOptions()
	if req.ChunkSize > 0 {
		opts.ChunkSize = req.ChunkSize
		opts.ChunkOverlap = req.ChunkOverlap
		opts.MinChunkSize = min(opts.MinChunkSize, opts.ChunkSize)
	} else if req.ChunkOverlap > 0 {
		opts.ChunkOverlap = req.ChunkOverlap
	}
	if req.Chunk && opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be smaller than chunk size", domain.ErrInvalidInput)
	}

	var items []driving.GeneratedEmbedding
	for i, text := range req.Texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrInvalidInput, i)
		}
		if !req.Chunk {
			items = append(items, driving.GeneratedEmbedding{Text: truncateRunes(text, maxEmbeddingText), ChunkIndex: i})
			continue
		}

		chunks, err := s.chunker.Split(ctx, text, opts)
		if err != nil {
			return nil, fmt.Errorf("chunk text %d: %w", i, err)
		}
		if len(chunks) == 0 {
			chunks = []domain.TextChunk{{Text: text}}
		}
		for _, c := range chunks {
			items = append(items, driving.GeneratedEmbedding{Text: truncateRunes(c.Text, maxEmbeddingText), ChunkIndex: c.Index})
		}
	}

	texts := make([]string, len(items))
	for i := range items {
		texts[i] = items[i].Text
	}

	ectx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()
	embs, err := s.embedder.EmbedBatch(ectx, texts)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(embs) != len(items) {
		return nil, fmt.Errorf("generate embeddings: got %d for %d texts", len(embs), len(items))
	}

	for i := range items {
		items[i].Embedding = embs[i].Vector
	}
	return &driving.EmbeddingResponse{
		Embeddings: items,
		Model:      embs[0].Model,
		Provider:   embs[0].Provider,
	}, nil
}
