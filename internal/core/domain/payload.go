package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the typed input of a task. Each TaskType has exactly one variant.
type Payload interface {
	taskPayload()
}

// LinkMetadataPayload drives link_metadata.
type LinkMetadataPayload struct {
	// URL overrides the stored link URL when set.
	URL string `json:"url,omitempty"`
}

// RefreshLinkPayload drives refresh_link_content.
type RefreshLinkPayload struct {
	URL string `json:"url,omitempty"`

	// Reembed queues link_embeddings after the refresh. Defaults to true.
	Reembed *bool `json:"reembed,omitempty"`
}

// ShouldReembed reports whether embeddings should be regenerated.
func (p RefreshLinkPayload) ShouldReembed() bool {
	return p.Reembed == nil || *p.Reembed
}

// EmbeddingPayload drives link_embeddings, note_embeddings and refresh_note_content.
type EmbeddingPayload struct{}

func (LinkMetadataPayload) taskPayload() {}
func (RefreshLinkPayload) taskPayload()  {}
func (EmbeddingPayload) taskPayload()    {}

// DecodePayload decodes raw into the payload variant for t.
// An empty payload decodes to the zero value. Unknown keys are rejected.
func DecodePayload(t TaskType, raw json.RawMessage) (Payload, error) {
	switch t {
	case TaskTypeLinkMetadata:
		var p LinkMetadataPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TaskTypeRefreshLinkContent:
		var p RefreshLinkPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TaskTypeLinkEmbeddings, TaskTypeNoteEmbeddings, TaskTypeRefreshNoteContent:
		var p EmbeddingPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, t)
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrInvalidInput, err)
	}
	return nil
}

// LinkMetadataResult is the result of link_metadata and refresh_link_content.
type LinkMetadataResult struct {
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Favicon       string      `json:"favicon,omitempty"`
	SiteName      string      `json:"siteName,omitempty"`
	ContentType   ContentType `json:"contentType"`
	WordCount     int         `json:"wordCount,omitempty"`
	Author        string      `json:"author,omitempty"`
	PublishedDate *time.Time  `json:"publishedDate,omitempty"`

	// FollowUpTaskID is the link_embeddings task queued after a refresh.
	FollowUpTaskID string `json:"followUpTaskId,omitempty"`
}

// EmbeddingResult is the result of the embedding stages.
type EmbeddingResult struct {
	Provider   EmbeddingProvider `json:"provider"`
	Model      string            `json:"model"`
	Dimensions int               `json:"dimensions"`
	ChunkCount int               `json:"chunkCount"`

	// ChunkError is set when the aggregate embedding was saved but chunks were not.
	ChunkError string `json:"chunkError,omitempty"`
}

// EncodeResult marshals a typed result for storage on the task.
func EncodeResult(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding task result: %w", err)
	}
	return data, nil
}
