package httpapi

import (
	"net/http"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
	Limit  int    `json:"limit,omitempty"`
}

type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
	Intent  *domain.QueryIntent   `json:"intent"`
}

type semanticSearchRequest struct {
	Query     string  `json:"query"`
	UserID    string  `json:"userId"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

type semanticSearchResponse struct {
	Results []domain.SemanticResult `json:"results"`
}

type embeddingsRequest struct {
	Texts        []string `json:"texts"`
	Chunk        bool     `json:"chunk"`
	ChunkSize    int      `json:"chunkSize,omitempty"`
	ChunkOverlap int      `json:"chunkOverlap,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("userId", req.UserID); err != nil {
		writeError(w, err)
		return
	}

	results, intent, err := s.ports.Search.Search(r.Context(), req.UserID, req.Query,
		domain.SearchOptions{Limit: req.Limit})
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Intent: intent})
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	var req semanticSearchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := required("query", req.Query); err != nil {
		writeError(w, err)
		return
	}
	if err := required("userId", req.UserID); err != nil {
		writeError(w, err)
		return
	}

	results, err := s.ports.Search.SemanticSearch(r.Context(), req.UserID, req.Query,
		domain.SemanticSearchOptions{Limit: req.Limit, Threshold: req.Threshold})
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.SemanticResult{}
	}
	writeJSON(w, http.StatusOK, semanticSearchResponse{Results: results})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.ports.Embeddings.Generate(r.Context(), driving.EmbeddingRequest{
		Texts:        req.Texts,
		Chunk:        req.Chunk,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
