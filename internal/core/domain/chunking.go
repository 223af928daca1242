package domain

// SplitMode selects how text is segmented before chunks are assembled.
type SplitMode string

// Split modes.
const (
	SplitBySentence  SplitMode = "sentence"
	SplitByParagraph SplitMode = "paragraph"
	SplitByCharacter SplitMode = "character"
)

// IsValid returns true if the mode is recognised.
func (m SplitMode) IsValid() bool {
	return m == SplitBySentence || m == SplitByParagraph || m == SplitByCharacter
}

// ChunkOptions configures a chunking run. Zero values take the chunker defaults.
type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
	SplitBy      SplitMode
}

// NoteChunkOptions are the settings used when indexing notes.
func NoteChunkOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    500,
		ChunkOverlap: 50,
		MinChunkSize: 50,
		SplitBy:      SplitBySentence,
	}
}

// TextChunk is an ephemeral chunk produced by the chunker.
type TextChunk struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Index int    `json:"index"`

	// StartChar and EndChar are byte offsets of the chunk's new material in
	// the source text. The leading overlap copied from the previous chunk is
	// not included in the range.
	StartChar int `json:"startChar"`
	EndChar   int `json:"endChar"`
}
