package driving

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search runs hybrid lexical and semantic ranking over the owner's links
	// and notes. It degrades to lexical ranking rather than failing when
	// embeddings are unavailable.
	Search(ctx context.Context, ownerID, query string, opts domain.SearchOptions) ([]domain.SearchResult, *domain.QueryIntent, error)

	// SemanticSearch ranks the owner's documents and chunks by embedding
	// similarity alone.
	SemanticSearch(ctx context.Context, ownerID, query string, opts domain.SemanticSearchOptions) ([]domain.SemanticResult, error)
}
