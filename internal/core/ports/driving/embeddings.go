package driving

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// EmbeddingRequest asks for embeddings of texts, optionally chunked first.
type EmbeddingRequest struct {
	Texts        []string
	Chunk        bool
	ChunkSize    int
	ChunkOverlap int
}

// GeneratedEmbedding is one embedded text or chunk.
type GeneratedEmbedding struct {
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	ChunkIndex int       `json:"chunkIndex"`
}

// EmbeddingResponse is the output of EmbeddingGenerator.Generate.
type EmbeddingResponse struct {
	Embeddings []GeneratedEmbedding     `json:"embeddings"`
	Model      string                   `json:"model"`
	Provider   domain.EmbeddingProvider `json:"provider"`
}

// EmbeddingGenerator exposes raw embedding generation.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
