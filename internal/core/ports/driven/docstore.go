package driven

import (
	"context"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// DocumentStore persists links, notes, their chunks, folders and tags.
type DocumentStore interface {
	// SaveLink stores or updates a link, including its embedding when set.
	SaveLink(ctx context.Context, link *domain.Link) error

	// GetLink retrieves a link by ID. Returns domain.ErrNotFound if missing.
	GetLink(ctx context.Context, id string) (*domain.Link, error)

	// ListLinks returns all links for an owner.
	ListLinks(ctx context.Context, ownerID string) ([]domain.Link, error)

	// SaveNote stores or updates a note, including its embedding when set.
	SaveNote(ctx context.Context, note *domain.Note) error

	// GetNote retrieves a note by ID. Returns domain.ErrNotFound if missing.
	GetNote(ctx context.Context, id string) (*domain.Note, error)

	// ListNotes returns all notes for an owner.
	ListNotes(ctx context.Context, ownerID string) ([]domain.Note, error)

	// ReplaceChunks deletes every chunk of the parent and inserts chunks.
	// An empty slice clears the parent's chunks.
	ReplaceChunks(ctx context.Context, parentType domain.EntityType, parentID string, chunks []domain.Chunk) error

	// GetChunks returns a parent's chunks ordered by index.
	GetChunks(ctx context.Context, parentType domain.EntityType, parentID string) ([]domain.Chunk, error)

	// ListChunks returns every chunk belonging to the owner's documents.
	ListChunks(ctx context.Context, ownerID string) ([]domain.Chunk, error)

	// EnsureFolder returns the owner's folder with this name, creating it if needed.
	EnsureFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error)

	// ListFolders returns the owner's folders.
	ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)

	// EnsureTag returns the owner's tag with this name, creating it if needed.
	EnsureTag(ctx context.Context, ownerID, name string) (*domain.Tag, error)

	// ListTags returns the owner's tags.
	ListTags(ctx context.Context, ownerID string) ([]domain.Tag, error)
}
