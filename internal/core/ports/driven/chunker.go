package driven

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// Chunker splits text into overlapping, size-bounded chunks.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Split chunks text. Zero-valued options take the chunker defaults.
	Split(ctx context.Context, text string, opts domain.ChunkOptions) ([]domain.TextChunk, error)
}
