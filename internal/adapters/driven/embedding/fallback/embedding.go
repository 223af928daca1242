// Package fallback wraps a remote embedding service so failed calls are
// answered by a secondary, normally local, service.
//
// Embeddings returned by the secondary keep the secondary's provider and
// model, so they are never compared with the primary's vectors.
package fallback

import (
	"context"
	"errors"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService tries primary first and secondary on failure.
type EmbeddingService struct {
	primary   driven.EmbeddingService
	secondary driven.EmbeddingService
}

// New wraps primary with secondary.
func New(primary, secondary driven.EmbeddingService) *EmbeddingService {
	return &EmbeddingService{primary: primary, secondary: secondary}
}

// Embed embeds text with primary, falling back to secondary.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	emb, err := s.primary.Embed(ctx, text)
	if err == nil {
		return emb, nil
	}
	if !shouldFallBack(ctx, err) {
		return domain.Embedding{}, err
	}
	logger.Warn("%s embedding failed, using %s: %v", s.primary.Provider(), s.secondary.Provider(), err)
	return s.secondary.Embed(ctx, text)
}

// EmbedBatch embeds texts with primary, falling back to secondary for the
// whole batch.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	embs, err := s.primary.EmbedBatch(ctx, texts)
	if err == nil {
		return embs, nil
	}
	if !shouldFallBack(ctx, err) {
		return nil, err
	}
	logger.Warn("%s batch embedding failed, using %s: %v", s.primary.Provider(), s.secondary.Provider(), err)
	return s.secondary.EmbedBatch(ctx, texts)
}

// shouldFallBack is false once the caller has given up.
func shouldFallBack(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Provider returns the primary provider.
func (s *EmbeddingService) Provider() domain.EmbeddingProvider {
	return s.primary.Provider()
}

// Dimensions returns the primary vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.primary.Dimensions()
}

// ModelName returns the primary model.
func (s *EmbeddingService) ModelName() string {
	return s.primary.ModelName()
}

// Ping checks the primary only.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}

// Close closes both services.
func (s *EmbeddingService) Close() error {
	return errors.Join(s.primary.Close(), s.secondary.Close())
}
