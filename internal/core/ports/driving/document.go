package driving

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// LinkInput creates or updates a link.
type LinkInput struct {
	OwnerID     string
	ID          string
	URL         string
	Title       string
	Description string
	Folder      string
	Tags        []string
}

// NoteInput creates or updates a note.
type NoteInput struct {
	OwnerID string
	ID      string
	Title   string
	Content string
	Folder  string
	Tags    []string
}

// DocumentService saves documents and queues their indexing tasks.
type DocumentService interface {
	// SaveLink upserts a link and enqueues link_metadata and link_embeddings.
	SaveLink(ctx context.Context, in LinkInput) (*domain.Link, []domain.Task, error)

	// SaveNote upserts a note and enqueues note_embeddings.
	SaveNote(ctx context.Context, in NoteInput) (*domain.Note, []domain.Task, error)
}
