package driven

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Every returned embedding carries the provider and model that produced it,
// so callers can refuse to compare vectors from different spaces.
//
// Implementations include:
//   - local: deterministic hashed vectors, no credentials
//   - openai: text-embedding-3-large
//   - ollama, bedrock, vertex
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) (domain.Embedding, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error)

	// Provider identifies the backend.
	Provider() domain.EmbeddingProvider

	// Dimensions returns the embedding vector size (e.g., 768, 1024, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
