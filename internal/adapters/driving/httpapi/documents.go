package httpapi

import (
	"net/http"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

type saveLinkRequest struct {
	UserID      string   `json:"userId"`
	ID          string   `json:"id,omitempty"`
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Folder      string   `json:"folder,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type saveNoteRequest struct {
	UserID  string   `json:"userId"`
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Folder  string   `json:"folder,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type linkResponse struct {
	Link  *domain.Link  `json:"link"`
	Tasks []domain.Task `json:"tasks"`
}

type noteResponse struct {
	Note  *domain.Note  `json:"note"`
	Tasks []domain.Task `json:"tasks"`
}

func (s *Server) handleSaveLink(w http.ResponseWriter, r *http.Request) {
	var req saveLinkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	link, tasks, err := s.ports.Documents.SaveLink(r.Context(), driving.LinkInput{
		OwnerID:     req.UserID,
		ID:          req.ID,
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		Folder:      req.Folder,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, linkResponse{Link: link, Tasks: tasks})
}

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req saveNoteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	note, tasks, err := s.ports.Documents.SaveNote(r.Context(), driving.NoteInput{
		OwnerID: req.UserID,
		ID:      req.ID,
		Title:   req.Title,
		Content: req.Content,
		Folder:  req.Folder,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, noteResponse{Note: note, Tasks: tasks})
}
