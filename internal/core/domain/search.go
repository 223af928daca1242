package domain

import (
	"encoding/json"
	"time"
)

// IntentKind is the primary interpretation of a query.
type IntentKind string

// Intent kinds. A query with several filters reports the first one found.
const (
	IntentSearch       IntentKind = "search"
	IntentFilterFolder IntentKind = "filter_folder"
	IntentFilterTag    IntentKind = "filter_tag"
	IntentFilterDate   IntentKind = "filter_date"
	IntentFilterType   IntentKind = "filter_type"
)

// DateRange is a half-open [From, To) interval.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// QueryIntent is the structured reading of a raw query.
type QueryIntent struct {
	Kind  IntentKind `json:"kind"`
	Value string     `json:"value,omitempty"`

	DateRange *DateRange `json:"date_range,omitempty"`
	Folder    string     `json:"folder,omitempty"`
	Tag       string     `json:"tag,omitempty"`
	Type      EntityType `json:"type,omitempty"`

	// SearchTerms is what remains after filter phrases are stripped.
	SearchTerms []string `json:"search_terms"`
}

// HasFilters reports whether any folder, tag, date or type constraint was parsed.
func (q *QueryIntent) HasFilters() bool {
	return q.DateRange != nil || q.Folder != "" || q.Tag != "" || q.Type != ""
}

// MatchKind describes how a result matched.
type MatchKind string

// Match kinds.
const (
	MatchKeyword  MatchKind = "keyword"
	MatchSemantic MatchKind = "semantic"
	MatchChunk    MatchKind = "chunk"
)

// Match records one contributing signal of a search result.
type Match struct {
	Kind    MatchKind `json:"kind"`
	Field   string    `json:"field"`
	Score   float64   `json:"score"`
	Excerpt string    `json:"excerpt,omitempty"`
}

// SearchResult is a ranked link or note.
type SearchResult struct {
	Type EntityType `json:"type"`

	// Exactly one of Link and Note is set, matching Type.
	Link *Link `json:"-"`
	Note *Note `json:"-"`

	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	CombinedScore float64 `json:"combined_score"`
	Matches       []Match `json:"matches"`
}

// ItemID returns the id of the underlying document.
func (r *SearchResult) ItemID() string {
	if r.Link != nil {
		return r.Link.ID
	}
	if r.Note != nil {
		return r.Note.ID
	}
	return ""
}

// ItemUpdatedAt returns the last modification time of the underlying document.
func (r *SearchResult) ItemUpdatedAt() time.Time {
	if r.Link != nil {
		return r.Link.UpdatedAt
	}
	if r.Note != nil {
		return r.Note.UpdatedAt
	}
	return time.Time{}
}

// MarshalJSON renders the document under "item".
func (r SearchResult) MarshalJSON() ([]byte, error) {
	type alias SearchResult
	return json.Marshal(struct {
		alias
		Item any `json:"item"`
	}{alias(r), item(r.Link, r.Note)})
}

// SearchWeights blends lexical and semantic scores.
type SearchWeights struct {
	Keyword  float64 `json:"keyword"`
	Semantic float64 `json:"semantic"`
}

// DefaultSearchWeights returns the 0.4/0.6 keyword/semantic split.
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{Keyword: 0.4, Semantic: 0.6}
}

// Search defaults.
const (
	DefaultTopK              = 20
	DefaultMinScore          = 0.1
	DefaultSemanticThreshold = 0.5
)

// SearchOptions configures a hybrid search.
type SearchOptions struct {
	// Limit caps the result count. Defaults to DefaultTopK.
	Limit int

	// MinScore drops weaker results. Defaults to DefaultMinScore.
	MinScore float64

	// Weights overrides the configured keyword/semantic blend.
	Weights *SearchWeights
}

// SemanticSearchOptions configures an embedding-only search.
type SemanticSearchOptions struct {
	Limit     int
	Threshold float64
}

// SemanticResult is a document matched by vector similarity alone.
type SemanticResult struct {
	Type       EntityType `json:"type"`
	Link       *Link      `json:"-"`
	Note       *Note      `json:"-"`
	Similarity float64    `json:"similarity"`

	// ChunkText is set when the best match came from a chunk.
	ChunkText string `json:"chunkText,omitempty"`
}

// ItemID returns the id of the underlying document.
func (r *SemanticResult) ItemID() string {
	if r.Link != nil {
		return r.Link.ID
	}
	if r.Note != nil {
		return r.Note.ID
	}
	return ""
}

// MarshalJSON renders the document under "item".
func (r SemanticResult) MarshalJSON() ([]byte, error) {
	type alias SemanticResult
	return json.Marshal(struct {
		alias
		Item any `json:"item"`
	}{alias(r), item(r.Link, r.Note)})
}

func item(link *Link, note *Note) any {
	if link != nil {
		return link
	}
	if note != nil {
		return note
	}
	return nil
}
