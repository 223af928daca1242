package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu      sync.RWMutex
	links   map[string]domain.Link
	notes   map[string]domain.Note
	chunks  map[string][]domain.Chunk
	folders map[string]domain.Folder // owner|name
	tags    map[string]domain.Tag    // owner|name
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		links:   make(map[string]domain.Link),
		notes:   make(map[string]domain.Note),
		chunks:  make(map[string][]domain.Chunk),
		folders: make(map[string]domain.Folder),
		tags:    make(map[string]domain.Tag),
	}
}

func chunkKey(parentType domain.EntityType, parentID string) string {
	return string(parentType) + "/" + parentID
}

// SaveLink stores or updates a link.
func (s *DocumentStore) SaveLink(_ context.Context, link *domain.Link) error {
	if link == nil || link.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.ID] = *link
	return nil
}

// GetLink retrieves a link by ID.
func (s *DocumentStore) GetLink(_ context.Context, id string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &link, nil
}

// ListLinks returns an owner's links ordered by creation.
func (s *DocumentStore) ListLinks(_ context.Context, ownerID string) ([]domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Link
	for id := range s.links {
		if s.links[id].OwnerID == ownerID {
			result = append(result, s.links[id])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SaveNote stores or updates a note.
func (s *DocumentStore) SaveNote(_ context.Context, note *domain.Note) error {
	if note == nil || note.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = *note
	return nil
}

// GetNote retrieves a note by ID.
func (s *DocumentStore) GetNote(_ context.Context, id string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &note, nil
}

// ListNotes returns an owner's notes ordered by creation.
func (s *DocumentStore) ListNotes(_ context.Context, ownerID string) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Note
	for id := range s.notes {
		if s.notes[id].OwnerID == ownerID {
			result = append(result, s.notes[id])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ReplaceChunks swaps a parent's chunks.
func (s *DocumentStore) ReplaceChunks(
	_ context.Context, parentType domain.EntityType, parentID string, chunks []domain.Chunk,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chunkKey(parentType, parentID)
	if len(chunks) == 0 {
		delete(s.chunks, key)
		return nil
	}
	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.ParentType = parentType
		c.ParentID = parentID
		if r := []rune(c.Text); len(r) > domain.MaxChunkTextLength {
			c.Text = string(r[:domain.MaxChunkTextLength])
		}
		stored[i] = c
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	s.chunks[key] = stored
	return nil
}

// GetChunks retrieves a parent's chunks ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, parentType domain.EntityType, parentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[chunkKey(parentType, parentID)]
	return append([]domain.Chunk(nil), chunks...), nil
}

// ListChunks returns every chunk of the owner's documents.
func (s *DocumentStore) ListChunks(_ context.Context, ownerID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Chunk
	for id := range s.links {
		if s.links[id].OwnerID == ownerID {
			result = append(result, s.chunks[chunkKey(domain.EntityTypeLink, id)]...)
		}
	}
	for id := range s.notes {
		if s.notes[id].OwnerID == ownerID {
			result = append(result, s.chunks[chunkKey(domain.EntityTypeNote, id)]...)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ParentType != b.ParentType {
			return a.ParentType < b.ParentType
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		return a.Index < b.Index
	})
	return result, nil
}

// EnsureFolder returns or creates the owner's folder called name.
func (s *DocumentStore) EnsureFolder(_ context.Context, ownerID, name string) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerID + "|" + name
	f, ok := s.folders[key]
	if !ok {
		f = domain.Folder{ID: uuid.New().String(), OwnerID: ownerID, Name: name}
		s.folders[key] = f
	}
	return &f, nil
}

// ListFolders returns the owner's folders ordered by name.
func (s *DocumentStore) ListFolders(_ context.Context, ownerID string) ([]domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Folder
	for _, f := range s.folders {
		if f.OwnerID == ownerID {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// EnsureTag returns or creates the owner's tag called name.
func (s *DocumentStore) EnsureTag(_ context.Context, ownerID, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerID + "|" + name
	t, ok := s.tags[key]
	if !ok {
		t = domain.Tag{ID: uuid.New().String(), OwnerID: ownerID, Name: name}
		s.tags[key] = t
	}
	return &t, nil
}

// ListTags returns the owner's tags ordered by name.
func (s *DocumentStore) ListTags(_ context.Context, ownerID string) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Tag
	for _, t := range s.tags {
		if t.OwnerID == ownerID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
