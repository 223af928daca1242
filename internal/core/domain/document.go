package domain

import "time"

// ContentType classifies a fetched page.
type ContentType string

// Content types recognised by the extractor.
const (
	ContentTypeArticle ContentType = "article"
	ContentTypeTweet   ContentType = "tweet"
	ContentTypeVideo   ContentType = "video"
	ContentTypeWebpage ContentType = "webpage"
)

// Link is a saved bookmark.
type Link struct {
	// ID is the unique identifier for the link.
	ID string `json:"id"`

	// OwnerID is the user the link belongs to.
	OwnerID string `json:"owner_id"`

	// URL is the bookmarked address.
	URL string `json:"url"`

	// Title and Description are what the user gave when saving the link.
	Title       string `json:"title"`
	Description string `json:"description"`

	// MetaTitle and MetaDescription come from the fetched page and are
	// overwritten on every metadata fetch.
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`

	// Favicon is an absolute URL to the site icon.
	Favicon string `json:"favicon,omitempty"`

	// SiteName is the publisher name or hostname.
	SiteName string `json:"site_name,omitempty"`

	// ContentType is the extractor's classification.
	ContentType ContentType `json:"content_type,omitempty"`

	// FullContent is the extracted main text, set by refresh_link_content.
	FullContent string `json:"full_content,omitempty"`

	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	WordCount     int        `json:"word_count,omitempty"`

	FolderID string   `json:"folder_id,omitempty"`
	TagIDs   []string `json:"tag_ids,omitempty"`

	// Embedding is the aggregate vector, nil until link_embeddings runs.
	Embedding *Embedding `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the user's title, falling back to the page title.
func (l *Link) DisplayTitle() string {
	if l.Title != "" {
		return l.Title
	}
	return l.MetaTitle
}

// DisplayDescription returns the user's description, falling back to the
// page description.
func (l *Link) DisplayDescription() string {
	if l.Description != "" {
		return l.Description
	}
	return l.MetaDescription
}

// EmbeddingText returns the text embedded for the link: title and description.
func (l *Link) EmbeddingText() string {
	return l.DisplayTitle() + " " + l.DisplayDescription()
}

// ClearFetched drops everything derived from the page at URL.
func (l *Link) ClearFetched() {
	l.MetaTitle, l.MetaDescription = "", ""
	l.Favicon, l.SiteName, l.ContentType = "", "", ""
	l.FullContent, l.Author, l.PublishedDate, l.WordCount = "", "", nil, 0
	l.Embedding = nil
}

// Note is a free-text note.
type Note struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Content string `json:"content"`

	WordCount int `json:"word_count,omitempty"`

	FolderID string   `json:"folder_id,omitempty"`
	TagIDs   []string `json:"tag_ids,omitempty"`

	Embedding *Embedding `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmbeddingText returns the text embedded for the note: title, blank line, content.
func (n *Note) EmbeddingText() string {
	return n.Title + "\n\n" + n.Content
}

// MaxChunkTextLength bounds the stored text of a single chunk.
const MaxChunkTextLength = 10000

// Chunk is a contiguous slice of a document's text with its own embedding.
type Chunk struct {
	// ID is deterministic: derived from the first characters and the index.
	ID string `json:"id"`

	// ParentType and ParentID identify the owning document.
	ParentType EntityType `json:"parent_type"`
	ParentID   string     `json:"parent_id"`

	// Index is the 0-based position within the parent. Indexes are dense.
	Index int `json:"index"`

	// Text is at most MaxChunkTextLength characters.
	Text string `json:"text"`

	// StartChar and EndChar are byte offsets into the source text.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	Embedding *Embedding `json:"-"`
}

// Folder groups documents for an owner.
type Folder struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

// Tag labels documents for an owner.
type Tag struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}
