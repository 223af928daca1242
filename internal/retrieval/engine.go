package retrieval

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// Field weights. Title matters most; folder names least.
const (
	weightTitle           = 1.5
	weightMetaTitle       = 1.2
	weightDescription     = 1.0
	weightContent         = 1.0
	weightMetaDescription = 0.9
	weightURL             = 0.8
	weightTag             = 0.8
	weightSiteName        = 0.7
	weightFolder          = 0.6

	// maxFieldWeight normalises keyword scores into [0,1].
	maxFieldWeight = weightTitle

	// synonymWeight discounts matches found only through a synonym.
	synonymWeight = 0.8

	// filterThreshold is the similarity a folder or tag name needs to pass.
	filterThreshold = 0.5

	excerptLength = 200
)

// Candidates is the working set a query is ranked over.
type Candidates struct {
	Links   []domain.Link
	Notes   []domain.Note
	Chunks  []domain.Chunk
	Folders []domain.Folder
	Tags    []domain.Tag
}

// Options tunes a search. Zero values take the package defaults.
type Options struct {
	Weights  domain.SearchWeights
	TopK     int
	MinScore float64

	// QueryEmbedding enables semantic scoring when set.
	QueryEmbedding *domain.Embedding

	// SemanticThreshold is the chunk similarity recorded as a match.
	SemanticThreshold float64

	// Now anchors date phrases. Defaults to time.Now.
	Now time.Time
}

func (o Options) withDefaults() Options {
	if o.Weights == (domain.SearchWeights{}) {
		o.Weights = domain.DefaultSearchWeights()
	}
	if o.TopK <= 0 {
		o.TopK = domain.DefaultTopK
	}
	if o.MinScore <= 0 {
		o.MinScore = domain.DefaultMinScore
	}
	if o.SemanticThreshold <= 0 {
		o.SemanticThreshold = domain.DefaultSemanticThreshold
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Engine ranks candidates against queries.
type Engine struct{}

// NewEngine creates a retrieval engine.
func NewEngine() *Engine {
	return &Engine{}
}

// field is one searchable piece of a document.
type field struct {
	name   string
	text   string
	weight float64
}

// item is a link or note prepared for scoring.
type item struct {
	kind      domain.EntityType
	link      *domain.Link
	note      *domain.Note
	id        string
	folder    string
	tags      []string
	created   time.Time
	fields    []field
	embedding *domain.Embedding
}

// Search ranks the candidates for query and returns the parsed intent.
// Results are sorted by combined score, then most recently updated, then id.
func (e *Engine) Search(query string, c Candidates, opts Options) ([]domain.SearchResult, domain.QueryIntent) {
	opts = opts.withDefaults()
	intent := ParseIntent(query, opts.Now)
	if len(intent.SearchTerms) == 0 && !intent.HasFilters() {
		return []domain.SearchResult{}, intent
	}

	items := prepare(c)
	chunks := lo.GroupBy(c.Chunks, func(ch domain.Chunk) string {
		return string(ch.ParentType) + "/" + ch.ParentID
	})

	phrase := strings.Join(intent.SearchTerms, " ")
	synonymTerms := Expand(intent.SearchTerms)
	filterOnly := len(intent.SearchTerms) == 0

	semantic := !filterOnly && opts.QueryEmbedding != nil &&
		anyComparable(opts.QueryEmbedding, items, c.Chunks)

	results := make([]domain.SearchResult, 0, len(items))
	for i := range items {
		it := &items[i]
		if !passesFilters(it, &intent) {
			continue
		}

		res := domain.SearchResult{Type: it.kind, Link: it.link, Note: it.note, Matches: []domain.Match{}}
		if filterOnly {
			res.KeywordScore = 1
		} else {
			res.KeywordScore, res.Matches = keywordScore(it, phrase, synonymTerms)
		}

		if semantic {
			var chunkMatches []domain.Match
			res.SemanticScore, chunkMatches = semanticScore(it, chunks[string(it.kind)+"/"+it.id],
				opts.QueryEmbedding, opts.SemanticThreshold)
			res.Matches = append(res.Matches, chunkMatches...)
			res.CombinedScore = res.KeywordScore*opts.Weights.Keyword + res.SemanticScore*opts.Weights.Semantic
		} else {
			res.CombinedScore = res.KeywordScore
		}

		if res.CombinedScore < opts.MinScore {
			continue
		}
		results = append(results, res)
	}

	sortResults(results)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, intent
}

func prepare(c Candidates) []item {
	folderNames := lo.SliceToMap(c.Folders, func(f domain.Folder) (string, string) { return f.ID, f.Name })
	tagNames := lo.SliceToMap(c.Tags, func(t domain.Tag) (string, string) { return t.ID, t.Name })
	resolveTags := func(ids []string) []string {
		return lo.FilterMap(ids, func(id string, _ int) (string, bool) {
			name, ok := tagNames[id]
			return name, ok
		})
	}

	items := make([]item, 0, len(c.Links)+len(c.Notes))
	for i := range c.Links {
		l := &c.Links[i]
		it := item{
			kind:      domain.EntityTypeLink,
			link:      l,
			id:        l.ID,
			folder:    folderNames[l.FolderID],
			tags:      resolveTags(l.TagIDs),
			created:   l.CreatedAt,
			embedding: l.Embedding,
		}
		it.fields = []field{
			{"title", l.Title, weightTitle},
			{"url", l.URL, weightURL},
			{"description", l.Description, weightDescription},
			{"content", l.FullContent, weightContent},
			{"meta_title", l.MetaTitle, weightMetaTitle},
			{"meta_description", l.MetaDescription, weightMetaDescription},
			{"site_name", l.SiteName, weightSiteName},
		}
		items = append(items, withTaxonomy(it))
	}
	for i := range c.Notes {
		n := &c.Notes[i]
		it := item{
			kind:      domain.EntityTypeNote,
			note:      n,
			id:        n.ID,
			folder:    folderNames[n.FolderID],
			tags:      resolveTags(n.TagIDs),
			created:   n.CreatedAt,
			embedding: n.Embedding,
		}
		it.fields = []field{
			{"title", n.Title, weightTitle},
			{"content", n.Content, weightContent},
		}
		items = append(items, withTaxonomy(it))
	}
	return items
}

func withTaxonomy(it item) item {
	if it.folder != "" {
		it.fields = append(it.fields, field{"folder", it.folder, weightFolder})
	}
	for _, t := range it.tags {
		it.fields = append(it.fields, field{"tag", t, weightTag})
	}
	return it
}

func passesFilters(it *item, intent *domain.QueryIntent) bool {
	if intent.Type != "" && it.kind != intent.Type {
		return false
	}
	if intent.DateRange != nil && !intent.DateRange.Contains(it.created) {
		return false
	}
	if intent.Folder != "" && Similarity(intent.Folder, it.folder) < filterThreshold {
		return false
	}
	if intent.Tag != "" && !lo.ContainsBy(it.tags, func(t string) bool {
		return Similarity(intent.Tag, t) >= filterThreshold
	}) {
		return false
	}
	return true
}

// keywordScore is the best weighted field similarity, normalised to [0,1].
// Fields matched only through a synonym are discounted.
func keywordScore(it *item, phrase string, synonymTerms []string) (float64, []domain.Match) {
	var (
		best    float64
		matches []domain.Match
	)
	for _, f := range it.fields {
		if f.text == "" {
			continue
		}
		sim := Similarity(phrase, f.text)
		for _, syn := range synonymTerms {
			sim = max(sim, Similarity(syn, f.text)*synonymWeight)
		}
		if sim <= 0 {
			continue
		}
		score := min(1, sim*f.weight/maxFieldWeight)
		matches = append(matches, domain.Match{Kind: domain.MatchKeyword, Field: f.name, Score: score})
		best = max(best, score)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if matches == nil {
		matches = []domain.Match{}
	}
	return best, matches
}

// semanticScore is the best cosine similarity of the document or any of its
// chunks, clamped at zero. Chunks above threshold become matches.
func semanticScore(it *item, chunks []domain.Chunk, query *domain.Embedding, threshold float64) (float64, []domain.Match) {
	var (
		best    float64
		matches []domain.Match
	)
	if query.Comparable(it.embedding) {
		sim := domain.CosineSimilarity(query.Vector, it.embedding.Vector)
		best = max(best, sim)
		if sim > 0 {
			matches = append(matches, domain.Match{Kind: domain.MatchSemantic, Field: "embedding", Score: sim})
		}
	}
	for i := range chunks {
		ch := &chunks[i]
		if !query.Comparable(ch.Embedding) {
			continue
		}
		sim := domain.CosineSimilarity(query.Vector, ch.Embedding.Vector)
		best = max(best, sim)
		if sim > threshold {
			matches = append(matches, domain.Match{
				Kind:    domain.MatchChunk,
				Field:   "chunk",
				Score:   sim,
				Excerpt: excerpt(ch.Text),
			})
		}
	}
	return max(0, best), matches
}

func anyComparable(query *domain.Embedding, items []item, chunks []domain.Chunk) bool {
	for i := range items {
		if query.Comparable(items[i].embedding) {
			return true
		}
	}
	for i := range chunks {
		if query.Comparable(chunks[i].Embedding) {
			return true
		}
	}
	return false
}

func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if ua, ub := a.ItemUpdatedAt(), b.ItemUpdatedAt(); !ua.Equal(ub) {
			return ua.After(ub)
		}
		return a.ItemID() < b.ItemID()
	})
}

func excerpt(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= excerptLength {
		return string(r)
	}
	return string(r[:excerptLength]) + "…"
}
