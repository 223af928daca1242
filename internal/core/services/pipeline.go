package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/logger"
)

// Stage timeouts.
const (
	metadataTimeout  = 15 * time.Second
	contentTimeout   = 30 * time.Second
	embeddingTimeout = 60 * time.Second
)

// Embedding input bounds, in characters.
const (
	minLinkEmbeddingText = 10
	minNoteEmbeddingText = 50
	maxEmbeddingText     = 10000
)

// taskCreator queues follow-up work.
type taskCreator interface {
	CreateTask(ctx context.Context, req domain.TaskRequest) (*domain.Task, bool, error)
}

// Pipeline runs the indexing stage selected by a task's type.
// Each stage fully replaces what a previous run stored for the document.
type Pipeline struct {
	docs      driven.DocumentStore
	fetcher   driven.PageFetcher
	extractor driven.ContentExtractor
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	tasks     taskCreator
	now       func() time.Time
}

// NewPipeline creates a content pipeline.
func NewPipeline(
	docs driven.DocumentStore,
	fetcher driven.PageFetcher,
	extractor driven.ContentExtractor,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
) *Pipeline {
	return &Pipeline{
		docs:      docs,
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		now:       time.Now,
	}
}

// SetTaskCreator sets where follow-up tasks are queued.
func (p *Pipeline) SetTaskCreator(tc taskCreator) {
	p.tasks = tc
}

// Run executes the stage for task and returns its encoded result.
func (p *Pipeline) Run(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
	payload, err := domain.DecodePayload(task.Type, task.Payload)
	if err != nil {
		return nil, err
	}

	var result any
	switch task.Type {
	case domain.TaskTypeLinkMetadata:
		pl, _ := payload.(domain.LinkMetadataPayload)
		result, err = p.linkMetadata(ctx, task, pl.URL, false, true)
	case domain.TaskTypeRefreshLinkContent:
		pl, _ := payload.(domain.RefreshLinkPayload)
		result, err = p.linkMetadata(ctx, task, pl.URL, true, pl.ShouldReembed())
	case domain.TaskTypeLinkEmbeddings:
		result, err = p.linkEmbeddings(ctx, task.EntityID)
	case domain.TaskTypeNoteEmbeddings, domain.TaskTypeRefreshNoteContent:
		result, err = p.noteEmbeddings(ctx, task.EntityID)
	default:
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, task.Type)
	}
	if err != nil {
		return nil, err
	}
	return domain.EncodeResult(result)
}

// linkMetadata fetches the page and stores its metadata. With full set the
// main text, author and date are stored too. reembed queues link_embeddings
// when the text it is built from changed, or always after a full refresh.
func (p *Pipeline) linkMetadata(
	ctx context.Context, task *domain.Task, overrideURL string, full, reembed bool,
) (*domain.LinkMetadataResult, error) {
	link, err := p.docs.GetLink(ctx, task.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load link %s: %w", task.EntityID, err)
	}

	target := link.URL
	if overrideURL != "" {
		target = overrideURL
	}
	if target == "" {
		return nil, fmt.Errorf("%w: link %s has no url", domain.ErrInvalidInput, link.ID)
	}

	timeout := metadataTimeout
	if full {
		timeout = contentTimeout
	}
	page, err := p.fetcher.Fetch(ctx, target, timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	ex, err := p.extractor.Extract(page)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", target, err)
	}

	before := link.EmbeddingText()
	link.MetaTitle = ex.Title
	link.MetaDescription = ex.Description
	link.Favicon = ex.Favicon
	link.SiteName = ex.SiteName
	link.ContentType = ex.ContentType
	if full {
		link.FullContent = truncateRunes(ex.FullText, maxEmbeddingText)
		link.WordCount = ex.WordCount
		link.Author = ex.Author
		link.PublishedDate = ex.PublishedDate
	}
	link.UpdatedAt = p.now()
	if err := p.docs.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save link %s: %w", link.ID, err)
	}

	result := &domain.LinkMetadataResult{
		Title:       link.MetaTitle,
		Description: link.MetaDescription,
		Favicon:     link.Favicon,
		SiteName:    link.SiteName,
		ContentType: link.ContentType,
	}
	if full {
		result.WordCount = link.WordCount
		result.Author = link.Author
		result.PublishedDate = link.PublishedDate
	}

	if reembed && (full || link.EmbeddingText() != before) && p.tasks != nil {
		follow, _, err := p.tasks.CreateTask(ctx, domain.TaskRequest{
			OwnerID:    link.OwnerID,
			Type:       domain.TaskTypeLinkEmbeddings,
			EntityType: domain.EntityTypeLink,
			EntityID:   link.ID,
		})
		if err != nil {
			logger.Warn("queue link_embeddings for %s: %v", link.ID, err)
		} else {
			result.FollowUpTaskID = follow.ID
		}
	}
	return result, nil
}

// linkEmbeddings embeds title and description as a single vector. Links
// keep no chunks.
func (p *Pipeline) linkEmbeddings(ctx context.Context, linkID string) (*domain.EmbeddingResult, error) {
	link, err := p.docs.GetLink(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("load link %s: %w", linkID, err)
	}

	text := strings.TrimSpace(link.EmbeddingText())
	if n := utf8.RuneCountInString(text); n < minLinkEmbeddingText {
		return nil, fmt.Errorf("%w: link text has %d characters, need %d",
			domain.ErrContentTooShort, n, minLinkEmbeddingText)
	}
	text = truncateRunes(text, maxEmbeddingText)

	ectx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()
	emb, err := p.embedder.Embed(ectx, text)
	if err != nil {
		return nil, fmt.Errorf("embed link %s: %w", linkID, err)
	}

	link.Embedding = &emb
	link.UpdatedAt = p.now()
	if err := p.docs.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save link %s: %w", linkID, err)
	}

	result := embeddingResult(emb, 0)
	if err := p.docs.ReplaceChunks(ctx, domain.EntityTypeLink, link.ID, nil); err != nil {
		logger.Warn("clear chunks of link %s: %v", link.ID, err)
		result.ChunkError = err.Error()
	}
	return result, nil
}

// noteEmbeddings chunks the note, embeds every chunk and stores the mean as
// the note's vector. A chunk write failure is reported but does not fail
// the task: the aggregate vector is already saved.
func (p *Pipeline) noteEmbeddings(ctx context.Context, noteID string) (*domain.EmbeddingResult, error) {
	note, err := p.docs.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note %s: %w", noteID, err)
	}

	text := note.EmbeddingText()
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < minNoteEmbeddingText {
		return nil, fmt.Errorf("%w: note text has %d characters, need %d",
			domain.ErrContentTooShort, n, minNoteEmbeddingText)
	}

	pieces, err := p.chunker.Split(ctx, text, domain.NoteChunkOptions())
	if err != nil {
		logger.Warn("chunk note %s: %v", noteID, err)
	}
	if len(pieces) == 0 {
		pieces = []domain.TextChunk{{Text: text, Index: 0, StartChar: 0, EndChar: len(text)}}
	}

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = truncateRunes(c.Text, maxEmbeddingText)
	}

	ectx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()
	embs, err := p.embedder.EmbedBatch(ectx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed note %s: %w", noteID, err)
	}
	if len(embs) != len(texts) {
		return nil, fmt.Errorf("embed note %s: got %d embeddings for %d chunks", noteID, len(embs), len(texts))
	}

	aggregate := embs[0]
	if len(embs) > 1 {
		vectors := make([][]float32, len(embs))
		for i := range embs {
			vectors[i] = embs[i].Vector
		}
		aggregate = domain.Embedding{
			Vector:   domain.AverageEmbeddings(vectors),
			Provider: embs[0].Provider,
			Model:    embs[0].Model,
		}
	}
	note.Embedding = &aggregate
	note.WordCount = len(strings.Fields(note.Content))
	note.UpdatedAt = p.now()
	if err := p.docs.SaveNote(ctx, note); err != nil {
		return nil, fmt.Errorf("save note %s: %w", noteID, err)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, c := range pieces {
		emb := embs[i]
		chunks[i] = domain.Chunk{
			ID:        chunkID(c, noteID),
			Index:     i,
			Text:      texts[i],
			StartChar: c.StartChar,
			EndChar:   c.EndChar,
			Embedding: &emb,
		}
	}

	result := embeddingResult(aggregate, len(chunks))
	if err := p.docs.ReplaceChunks(ctx, domain.EntityTypeNote, noteID, chunks); err != nil {
		logger.Warn("save chunks of note %s: %v", noteID, err)
		result.ChunkCount = 0
		result.ChunkError = err.Error()
	}
	return result, nil
}

// chunkID scopes the chunker's content id to the parent so identical
// passages in two notes stay distinct rows.
func chunkID(c domain.TextChunk, parentID string) string {
	if c.ID == "" {
		return fmt.Sprintf("%s-%d", parentID, c.Index)
	}
	return parentID + "-" + c.ID
}

func embeddingResult(emb domain.Embedding, chunkCount int) *domain.EmbeddingResult {
	return &domain.EmbeddingResult{
		Provider:   emb.Provider,
		Model:      emb.Model,
		Dimensions: len(emb.Vector),
		ChunkCount: chunkCount,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
