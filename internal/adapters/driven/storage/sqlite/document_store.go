package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const linkColumns = `id, owner_id, url, title, description, favicon, site_name, content_type,
	full_content, author, published_date, word_count, folder_id, tag_ids,
	embedding, embedding_provider, embedding_model, created_at, updated_at,
	meta_title, meta_description`

const noteColumns = `id, owner_id, title, content, word_count, folder_id, tag_ids,
	embedding, embedding_provider, embedding_model, created_at, updated_at`

const chunkColumns = `c.id, c.parent_type, c.parent_id, c.chunk_index, c.text, c.start_char, c.end_char,
	c.embedding, c.embedding_provider, c.embedding_model`

// ==================== Links ====================

// SaveLink stores or updates a link.
func (s *documentStore) SaveLink(ctx context.Context, link *domain.Link) error {
	if link == nil || link.ID == "" {
		return domain.ErrInvalidInput
	}

	tagsJSON, err := marshalTags(link.TagIDs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = now
	}
	blob, provider, model := embeddingColumns(link.Embedding)

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			url = excluded.url,
			title = excluded.title,
			description = excluded.description,
			favicon = excluded.favicon,
			site_name = excluded.site_name,
			content_type = excluded.content_type,
			full_content = excluded.full_content,
			author = excluded.author,
			published_date = excluded.published_date,
			word_count = excluded.word_count,
			folder_id = excluded.folder_id,
			tag_ids = excluded.tag_ids,
			embedding = excluded.embedding,
			embedding_provider = excluded.embedding_provider,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at,
			meta_title = excluded.meta_title,
			meta_description = excluded.meta_description
	`, link.ID, link.OwnerID, link.URL, link.Title, link.Description,
		nullString(link.Favicon), nullString(link.SiteName), nullString(string(link.ContentType)),
		nullString(link.FullContent), nullString(link.Author), formatNullableTime(link.PublishedDate),
		link.WordCount, nullString(link.FolderID), tagsJSON,
		blob, provider, model, formatTime(link.CreatedAt), formatTime(link.UpdatedAt),
		nullString(link.MetaTitle), nullString(link.MetaDescription))
	if err != nil {
		return fmt.Errorf("saving link: %w", err)
	}
	return nil
}

// GetLink retrieves a link by ID.
func (s *documentStore) GetLink(ctx context.Context, id string) (*domain.Link, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+linkColumns+" FROM links WHERE id = ?", id)
	return scanLink(row)
}

// ListLinks returns all links for an owner.
func (s *documentStore) ListLinks(ctx context.Context, ownerID string) ([]domain.Link, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var links []domain.Link //nolint:prealloc // size unknown from query
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating links: %w", err)
	}
	return links, nil
}

func scanLink(row scanner) (*domain.Link, error) {
	var (
		link                                   domain.Link
		favicon, siteName, contentType         sql.NullString
		fullContent, author, published, folder sql.NullString
		tagsJSON, createdAt, updatedAt         string
		blob                                   []byte
		provider, model, metaTitle, metaDesc   sql.NullString
	)

	err := row.Scan(&link.ID, &link.OwnerID, &link.URL, &link.Title, &link.Description,
		&favicon, &siteName, &contentType, &fullContent, &author, &published,
		&link.WordCount, &folder, &tagsJSON, &blob, &provider, &model, &createdAt, &updatedAt,
		&metaTitle, &metaDesc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link: %w", err)
	}

	link.MetaTitle = metaTitle.String
	link.MetaDescription = metaDesc.String
	link.Favicon = favicon.String
	link.SiteName = siteName.String
	link.ContentType = domain.ContentType(contentType.String)
	link.FullContent = fullContent.String
	link.Author = author.String
	link.PublishedDate = parseNullableTime(published)
	link.FolderID = folder.String
	if link.TagIDs, err = unmarshalTags(tagsJSON); err != nil {
		return nil, err
	}
	link.Embedding = scanEmbedding(blob, provider, model)
	link.CreatedAt = parseTime(createdAt)
	link.UpdatedAt = parseTime(updatedAt)

	return &link, nil
}

// ==================== Notes ====================

// SaveNote stores or updates a note.
func (s *documentStore) SaveNote(ctx context.Context, note *domain.Note) error {
	if note == nil || note.ID == "" {
		return domain.ErrInvalidInput
	}

	tagsJSON, err := marshalTags(note.TagIDs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}
	blob, provider, model := embeddingColumns(note.Embedding)

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			folder_id = excluded.folder_id,
			tag_ids = excluded.tag_ids,
			embedding = excluded.embedding,
			embedding_provider = excluded.embedding_provider,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at
	`, note.ID, note.OwnerID, note.Title, note.Content, note.WordCount,
		nullString(note.FolderID), tagsJSON, blob, provider, model,
		formatTime(note.CreatedAt), formatTime(note.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	return nil
}

// GetNote retrieves a note by ID.
func (s *documentStore) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	return scanNote(row)
}

// ListNotes returns all notes for an owner.
func (s *documentStore) ListNotes(ctx context.Context, ownerID string) ([]domain.Note, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note //nolint:prealloc // size unknown from query
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return notes, nil
}

func scanNote(row scanner) (*domain.Note, error) {
	var (
		note                           domain.Note
		folder, provider, model        sql.NullString
		tagsJSON, createdAt, updatedAt string
		blob                           []byte
	)

	err := row.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.WordCount,
		&folder, &tagsJSON, &blob, &provider, &model, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}

	note.FolderID = folder.String
	if note.TagIDs, err = unmarshalTags(tagsJSON); err != nil {
		return nil, err
	}
	note.Embedding = scanEmbedding(blob, provider, model)
	note.CreatedAt = parseTime(createdAt)
	note.UpdatedAt = parseTime(updatedAt)

	return &note, nil
}

// ==================== Chunks ====================

// ReplaceChunks swaps a parent's chunks inside one transaction.
func (s *documentStore) ReplaceChunks(
	ctx context.Context, parentType domain.EntityType, parentID string, chunks []domain.Chunk,
) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE parent_type = ? AND parent_id = ?", string(parentType), parentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (parent_type, parent_id, chunk_index, id, text, start_char, end_char,
				embedding, embedding_provider, embedding_model)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			blob, provider, model := embeddingColumns(chunk.Embedding)
			if _, err := stmt.ExecContext(ctx, string(parentType), parentID, chunk.Index, chunk.ID,
				truncateRunes(chunk.Text, domain.MaxChunkTextLength), chunk.StartChar, chunk.EndChar,
				blob, provider, model); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", chunk.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks returns a parent's chunks ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, parentType domain.EntityType, parentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		WHERE c.parent_type = ? AND c.parent_id = ?
		ORDER BY c.chunk_index
	`, string(parentType), parentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListChunks returns every chunk of the owner's links and notes.
func (s *documentStore) ListChunks(ctx context.Context, ownerID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks c
		JOIN links l ON c.parent_type = 'link' AND c.parent_id = l.id
		WHERE l.owner_id = ?
		UNION ALL
		SELECT `+chunkColumns+` FROM chunks c
		JOIN notes n ON c.parent_type = 'note' AND c.parent_id = n.id
		WHERE n.owner_id = ?
		ORDER BY 2, 3, 4
	`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			chunk           domain.Chunk
			parentType      string
			blob            []byte
			provider, model sql.NullString
		)
		if err := rows.Scan(&chunk.ID, &parentType, &chunk.ParentID, &chunk.Index, &chunk.Text,
			&chunk.StartChar, &chunk.EndChar, &blob, &provider, &model); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.ParentType = domain.EntityType(parentType)
		chunk.Embedding = scanEmbedding(blob, provider, model)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ==================== Folders and Tags ====================

// EnsureFolder returns or creates the owner's folder called name.
func (s *documentStore) EnsureFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error) {
	id, err := s.ensureNamed(ctx, "folders", ownerID, name)
	if err != nil {
		return nil, err
	}
	return &domain.Folder{ID: id, OwnerID: ownerID, Name: strings.TrimSpace(name)}, nil
}

// ListFolders returns the owner's folders ordered by name.
func (s *documentStore) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	named, err := s.listNamed(ctx, "folders", ownerID)
	if err != nil {
		return nil, err
	}
	folders := make([]domain.Folder, 0, len(named))
	for _, n := range named {
		folders = append(folders, domain.Folder{ID: n[0], OwnerID: ownerID, Name: n[1]})
	}
	return folders, nil
}

// EnsureTag returns or creates the owner's tag called name.
func (s *documentStore) EnsureTag(ctx context.Context, ownerID, name string) (*domain.Tag, error) {
	id, err := s.ensureNamed(ctx, "tags", ownerID, name)
	if err != nil {
		return nil, err
	}
	return &domain.Tag{ID: id, OwnerID: ownerID, Name: strings.TrimSpace(name)}, nil
}

// ListTags returns the owner's tags ordered by name.
func (s *documentStore) ListTags(ctx context.Context, ownerID string) ([]domain.Tag, error) {
	named, err := s.listNamed(ctx, "tags", ownerID)
	if err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, 0, len(named))
	for _, n := range named {
		tags = append(tags, domain.Tag{ID: n[0], OwnerID: ownerID, Name: n[1]})
	}
	return tags, nil
}

// ensureNamed upserts a row into folders or tags and returns its id.
func (s *documentStore) ensureNamed(ctx context.Context, table, ownerID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return "", domain.ErrInvalidInput
	}

	// table is one of two constants, never user input.
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO "+table+" (id, owner_id, name) VALUES (?, ?, ?) ON CONFLICT(owner_id, name) DO NOTHING",
		uuid.New().String(), ownerID, name)
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", table, err)
	}

	var id string
	err = s.store.db.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE owner_id = ? AND name = ?", ownerID, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", table, err)
	}
	return id, nil
}

func (s *documentStore) listNamed(ctx context.Context, table, ownerID string) ([][2]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, name FROM "+table+" WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out [][2]string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var n [2]string
		if err := rows.Scan(&n[0], &n[1]); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return out, nil
}

// ==================== Helpers ====================

func marshalTags(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshalling tag ids: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(data string) ([]string, error) {
	if data == "" || data == "[]" || data == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshalling tag ids: %w", err)
	}
	return ids, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
