package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// Priorities of the tasks queued on save. Metadata runs before embeddings.
const (
	metadataPriority  = domain.DefaultPriority + 1
	embeddingPriority = domain.DefaultPriority - 1
)

// DocumentService saves links and notes and queues their indexing.
type DocumentService struct {
	docs  driven.DocumentStore
	tasks driving.TaskService
	now   func() time.Time

	// onChange is called after a document is saved.
	onChange func()
}

// NewDocumentService creates a new document service.
func NewDocumentService(docs driven.DocumentStore, tasks driving.TaskService) *DocumentService {
	return &DocumentService{
		docs:  docs,
		tasks: tasks,
		now:   time.Now,
	}
}

// SetChangeHook registers a function called after every save, such as a
// search cache purge.
func (s *DocumentService) SetChangeHook(fn func()) {
	s.onChange = fn
}

// SaveLink upserts a link and queues link_metadata and link_embeddings.
func (s *DocumentService) SaveLink(ctx context.Context, in driving.LinkInput) (*domain.Link, []domain.Task, error) {
	if in.OwnerID == "" {
		return nil, nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if err := validateURL(in.URL); err != nil {
		return nil, nil, err
	}

	now := s.now()
	link := &domain.Link{ID: in.ID, OwnerID: in.OwnerID, CreatedAt: now}
	if in.ID != "" {
		existing, err := s.docs.GetLink(ctx, in.ID)
		if err != nil && !isNotFound(err) {
			return nil, nil, err
		}
		if existing != nil {
			if existing.OwnerID != in.OwnerID {
				return nil, nil, fmt.Errorf("%w: link %s", domain.ErrNotFound, in.ID)
			}
			link = existing
		}
	} else {
		link.ID = uuid.New().String()
	}

	if link.URL != in.URL {
		link.ClearFetched()
	}
	link.URL = in.URL
	link.Title = strings.TrimSpace(in.Title)
	link.Description = strings.TrimSpace(in.Description)
	link.UpdatedAt = now

	var err error
	if link.FolderID, link.TagIDs, err = s.resolveTaxonomy(ctx, in.OwnerID, in.Folder, in.Tags); err != nil {
		return nil, nil, err
	}
	if err := s.docs.SaveLink(ctx, link); err != nil {
		return nil, nil, fmt.Errorf("save link: %w", err)
	}
	s.changed()

	// Without enough text of its own the link is embedded once link_metadata
	// has stored the page's title, through that stage's follow-up.
	followUps := []followUp{{domain.TaskTypeLinkMetadata, metadataPriority}}
	if utf8.RuneCountInString(strings.TrimSpace(link.EmbeddingText())) >= minLinkEmbeddingText {
		followUps = append(followUps, followUp{domain.TaskTypeLinkEmbeddings, embeddingPriority})
	}
	tasks, err := s.enqueue(ctx, link.OwnerID, domain.EntityTypeLink, link.ID, followUps)
	return link, tasks, err
}

// SaveNote upserts a note and queues note_embeddings.
func (s *DocumentService) SaveNote(ctx context.Context, in driving.NoteInput) (*domain.Note, []domain.Task, error) {
	if in.OwnerID == "" {
		return nil, nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, nil, fmt.Errorf("%w: title or content is required", domain.ErrInvalidInput)
	}

	now := s.now()
	note := &domain.Note{ID: in.ID, OwnerID: in.OwnerID, CreatedAt: now}
	if in.ID != "" {
		existing, err := s.docs.GetNote(ctx, in.ID)
		if err != nil && !isNotFound(err) {
			return nil, nil, err
		}
		if existing != nil {
			if existing.OwnerID != in.OwnerID {
				return nil, nil, fmt.Errorf("%w: note %s", domain.ErrNotFound, in.ID)
			}
			note = existing
		}
	} else {
		note.ID = uuid.New().String()
	}

	note.Title = strings.TrimSpace(in.Title)
	note.Content = in.Content
	note.WordCount = len(strings.Fields(in.Content))
	note.UpdatedAt = now

	var err error
	if note.FolderID, note.TagIDs, err = s.resolveTaxonomy(ctx, in.OwnerID, in.Folder, in.Tags); err != nil {
		return nil, nil, err
	}
	if err := s.docs.SaveNote(ctx, note); err != nil {
		return nil, nil, fmt.Errorf("save note: %w", err)
	}
	s.changed()

	tasks, err := s.enqueue(ctx, note.OwnerID, domain.EntityTypeNote, note.ID, []followUp{
		{domain.TaskTypeNoteEmbeddings, domain.DefaultPriority},
	})
	return note, tasks, err
}

type followUp struct {
	taskType domain.TaskType
	priority int
}

func (s *DocumentService) enqueue(
	ctx context.Context, ownerID string, entityType domain.EntityType, entityID string, followUps []followUp,
) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0, len(followUps))
	for _, f := range followUps {
		task, _, err := s.tasks.CreateTask(ctx, domain.TaskRequest{
			OwnerID:    ownerID,
			Type:       f.taskType,
			EntityType: entityType,
			EntityID:   entityID,
			Priority:   f.priority,
		})
		if err != nil {
			return tasks, fmt.Errorf("queue %s: %w", f.taskType, err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// resolveTaxonomy returns the folder id and tag ids for the given names,
// creating missing ones. Blank and repeated tag names are ignored.
func (s *DocumentService) resolveTaxonomy(
	ctx context.Context, ownerID, folder string, tags []string,
) (string, []string, error) {
	var folderID string
	if name := strings.TrimSpace(folder); name != "" {
		f, err := s.docs.EnsureFolder(ctx, ownerID, name)
		if err != nil {
			return "", nil, fmt.Errorf("resolve folder %q: %w", name, err)
		}
		folderID = f.ID
	}

	names := lo.Uniq(lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimPrefix(strings.TrimSpace(t), "#")
	})))
	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := s.docs.EnsureTag(ctx, ownerID, name)
		if err != nil {
			return "", nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	return folderID, tagIDs, nil
}

func (s *DocumentService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) address", domain.ErrInvalidInput)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
