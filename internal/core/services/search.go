package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/logger"
	"github.com/custodia-labs/stash/internal/retrieval"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// cachedSearch is one memoised hybrid search.
type cachedSearch struct {
	results []domain.SearchResult
	intent  domain.QueryIntent
}

// SearchService answers queries over an owner's working set with the
// retrieval engine. Identical queries within the cache TTL are served from
// memory.
type SearchService struct {
	docs     driven.DocumentStore
	embedder driven.EmbeddingService
	engine   *retrieval.Engine
	now      func() time.Time

	mu       sync.RWMutex
	settings domain.SearchSettings
	cache    *expirable.LRU[string, cachedSearch]
}

// NewSearchService creates a new search service.
// The embedder is optional; without it search is lexical only.
func NewSearchService(
	docs driven.DocumentStore,
	embedder driven.EmbeddingService,
	settings domain.SearchSettings,
) *SearchService {
	s := &SearchService{
		docs:     docs,
		embedder: embedder,
		engine:   retrieval.NewEngine(),
		now:      time.Now,
	}
	s.UpdateSettings(settings)
	return s
}

// UpdateSettings swaps the ranking settings and drops cached results.
func (s *SearchService) UpdateSettings(settings domain.SearchSettings) {
	defaults := domain.DefaultSettings().Search
	if settings.CacheSize <= 0 {
		settings.CacheSize = defaults.CacheSize
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = defaults.CacheTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.cache = expirable.NewLRU[string, cachedSearch](settings.CacheSize, nil, settings.CacheTTL)
	logger.Debug("search settings: weights=%.2f/%.2f topK=%d minScore=%.2f",
		settings.Weights.Keyword, settings.Weights.Semantic, settings.TopK, settings.MinScore)
}

// Settings returns the active ranking settings.
func (s *SearchService) Settings() domain.SearchSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Invalidate drops every cached result.
func (s *SearchService) Invalidate() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.cache.Purge()
}

// Search runs hybrid ranking. Embedding failures degrade to lexical scoring.
func (s *SearchService) Search(
	ctx context.Context, ownerID, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, *domain.QueryIntent, error) {
	if ownerID == "" {
		return nil, nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	query = strings.TrimSpace(query)

	s.mu.RLock()
	settings, cache := s.settings, s.cache
	s.mu.RUnlock()

	engineOpts := retrieval.Options{
		Weights:  settings.Weights,
		TopK:     settings.TopK,
		MinScore: settings.MinScore,
		Now:      s.now(),
	}
	if opts.Limit > 0 {
		engineOpts.TopK = opts.Limit
	}
	if opts.MinScore > 0 {
		engineOpts.MinScore = opts.MinScore
	}
	if opts.Weights != nil {
		engineOpts.Weights = *opts.Weights
	}

	key := fmt.Sprintf("%s|hybrid|%s|%d|%g|%g|%g", ownerID, query,
		engineOpts.TopK, engineOpts.MinScore, engineOpts.Weights.Keyword, engineOpts.Weights.Semantic)
	if hit, ok := cache.Get(key); ok {
		logger.Debug("search cache hit for %q", query)
		intent := hit.intent
		return hit.results, &intent, nil
	}

	candidates, err := s.candidates(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	intent := retrieval.ParseIntent(query, engineOpts.Now)
	if len(intent.SearchTerms) > 0 {
		engineOpts.QueryEmbedding = s.queryEmbedding(ctx, strings.Join(intent.SearchTerms, " "))
	}

	results, intent := s.engine.Search(query, candidates, engineOpts)
	logger.Debug("search %q: %d results, intent=%s", query, len(results), intent.Kind)

	cache.Add(key, cachedSearch{results: results, intent: intent})
	return results, &intent, nil
}

// queryEmbedding embeds text, or returns nil so ranking stays lexical.
func (s *SearchService) queryEmbedding(ctx context.Context, text string) *domain.Embedding {
	if s.embedder == nil {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()
	emb, err := s.embedder.Embed(ectx, text)
	if err != nil {
		logger.Warn("query embedding failed, ranking lexically: %v", err)
		return nil
	}
	return &emb
}

// SemanticSearch ranks documents and chunks by similarity to the query
// embedding alone.
func (s *SearchService) SemanticSearch(
	ctx context.Context, ownerID, query string, opts domain.SemanticSearchOptions,
) ([]domain.SemanticResult, error) {
	query = strings.TrimSpace(query)
	if ownerID == "" || query == "" {
		return nil, fmt.Errorf("%w: query and owner are required", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding backend configured", domain.ErrEmbeddingUnavailable)
	}

	ectx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()
	emb, err := s.embedder.Embed(ectx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.candidates(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	results := s.engine.SemanticSearch(&emb, candidates, opts.Limit, opts.Threshold)
	logger.Debug("semantic search %q: %d results", query, len(results))
	return results, nil
}

// candidates loads the owner's working set.
func (s *SearchService) candidates(ctx context.Context, ownerID string) (retrieval.Candidates, error) {
	var (
		c   retrieval.Candidates
		err error
	)
	if c.Links, err = s.docs.ListLinks(ctx, ownerID); err != nil {
		return c, fmt.Errorf("list links: %w", err)
	}
	if c.Notes, err = s.docs.ListNotes(ctx, ownerID); err != nil {
		return c, fmt.Errorf("list notes: %w", err)
	}
	if c.Chunks, err = s.docs.ListChunks(ctx, ownerID); err != nil {
		return c, fmt.Errorf("list chunks: %w", err)
	}
	if c.Folders, err = s.docs.ListFolders(ctx, ownerID); err != nil {
		return c, fmt.Errorf("list folders: %w", err)
	}
	if c.Tags, err = s.docs.ListTags(ctx, ownerID); err != nil {
		return c, fmt.Errorf("list tags: %w", err)
	}
	return c, nil
}
