package retrieval

import (
	"sort"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// SemanticSearch ranks documents by vector similarity alone. A document's
// score is the best of its own embedding and its chunks; when a chunk wins,
// its text is returned with the result. Embeddings that are not comparable
// with the query are ignored.
func (e *Engine) SemanticSearch(query *domain.Embedding, c Candidates, limit int, threshold float64) []domain.SemanticResult {
	if limit <= 0 {
		limit = domain.DefaultTopK
	}
	if threshold <= 0 {
		threshold = domain.DefaultSemanticThreshold
	}
	results := []domain.SemanticResult{}
	if query == nil || len(query.Vector) == 0 {
		return results
	}

	best := make(map[string]*domain.SemanticResult)
	consider := func(key string, base domain.SemanticResult, sim float64, chunkText string) {
		if sim < threshold {
			return
		}
		if cur, ok := best[key]; ok && cur.Similarity >= sim {
			return
		}
		base.Similarity = sim
		base.ChunkText = chunkText
		best[key] = &base
	}

	links := make(map[string]*domain.Link, len(c.Links))
	for i := range c.Links {
		l := &c.Links[i]
		links[l.ID] = l
		if query.Comparable(l.Embedding) {
			consider("link/"+l.ID, domain.SemanticResult{Type: domain.EntityTypeLink, Link: l},
				domain.CosineSimilarity(query.Vector, l.Embedding.Vector), "")
		}
	}
	notes := make(map[string]*domain.Note, len(c.Notes))
	for i := range c.Notes {
		n := &c.Notes[i]
		notes[n.ID] = n
		if query.Comparable(n.Embedding) {
			consider("note/"+n.ID, domain.SemanticResult{Type: domain.EntityTypeNote, Note: n},
				domain.CosineSimilarity(query.Vector, n.Embedding.Vector), "")
		}
	}

	for i := range c.Chunks {
		ch := &c.Chunks[i]
		if !query.Comparable(ch.Embedding) {
			continue
		}
		base := domain.SemanticResult{Type: ch.ParentType}
		switch ch.ParentType {
		case domain.EntityTypeLink:
			if base.Link = links[ch.ParentID]; base.Link == nil {
				continue
			}
		case domain.EntityTypeNote:
			if base.Note = notes[ch.ParentID]; base.Note == nil {
				continue
			}
		default:
			continue
		}
		consider(string(ch.ParentType)+"/"+ch.ParentID, base,
			domain.CosineSimilarity(query.Vector, ch.Embedding.Vector), ch.Text)
	}

	for _, r := range best {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ItemID() < results[j].ItemID()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
