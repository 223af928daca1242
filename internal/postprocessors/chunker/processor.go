// Package chunker provides a sentence-aware text chunking processor.
package chunker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// DefaultMinChunkSize is the smallest chunk that is emitted on its own.
const DefaultMinChunkSize = 100

// idPrefixLength is how much of a chunk's text feeds its id.
const idPrefixLength = 50

// Processor splits text into overlapping chunks.
type Processor struct {
	chunkSize    int
	overlap      int
	minChunkSize int
	splitBy      domain.SplitMode
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithMinChunkSize sets the minimum chunk size in characters.
func WithMinChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.minChunkSize = size
		}
	}
}

// WithSplitMode sets how text is segmented.
func WithSplitMode(mode domain.SplitMode) Option {
	return func(p *Processor) {
		if mode.IsValid() {
			p.splitBy = mode
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:    DefaultChunkSize,
		overlap:      DefaultChunkOverlap,
		minChunkSize: DefaultMinChunkSize,
		splitBy:      domain.SplitBySentence,
	}

	for _, opt := range opts {
		opt(p)
	}
	p.normalise()

	return p
}

// normalise keeps overlap and minimum size consistent with the chunk size.
func (p *Processor) normalise() {
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	if p.minChunkSize > p.chunkSize {
		p.minChunkSize = p.chunkSize
	}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// with returns a copy configured by opts; zero fields keep p's values.
func (p *Processor) with(opts domain.ChunkOptions) *Processor {
	c := *p
	WithChunkSize(opts.ChunkSize)(&c)
	if opts.ChunkOverlap > 0 {
		c.overlap = opts.ChunkOverlap
	}
	WithMinChunkSize(opts.MinChunkSize)(&c)
	WithSplitMode(opts.SplitBy)(&c)
	c.normalise()
	return &c
}

// Split chunks text.
func (p *Processor) Split(_ context.Context, text string, opts domain.ChunkOptions) ([]domain.TextChunk, error) {
	c := p.with(opts)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch c.splitBy {
	case domain.SplitByCharacter:
		return c.splitCharacters(text), nil
	case domain.SplitByParagraph:
		return c.accumulate(text, splitParagraphs(text), "\n\n"), nil
	default:
		return c.accumulate(text, splitSentences(text), " "), nil
	}
}

// segment is a trimmed piece of the source text with its byte range.
type segment struct {
	text       string
	start, end int
}

// newSegment trims text[start:end] and returns false if nothing is left.
func newSegment(text string, start, end int) (segment, bool) {
	raw := text[start:end]
	trimmedLeft := strings.TrimLeftFunc(raw, unicode.IsSpace)
	start += len(raw) - len(trimmedLeft)
	trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	if trimmed == "" {
		return segment{}, false
	}
	return segment{text: trimmed, start: start, end: start + len(trimmed)}, true
}

var (
	sentenceBoundary  = regexp.MustCompile(`[.!?]+\s+`)
	paragraphBoundary = regexp.MustCompile(`\n\s*\n`)
)

// abbreviations never end a sentence.
var abbreviations = map[string]struct{}{
	"mr.": {}, "mrs.": {}, "ms.": {}, "dr.": {}, "prof.": {}, "sr.": {}, "jr.": {},
	"st.": {}, "vs.": {}, "etc.": {}, "inc.": {}, "ltd.": {}, "co.": {}, "corp.": {},
	"e.g.": {}, "i.e.": {}, "a.m.": {}, "p.m.": {}, "u.s.": {}, "u.k.": {},
	"no.": {}, "fig.": {}, "approx.": {}, "dept.": {}, "est.": {}, "mt.": {},
}

// isAbbreviation reports whether the word ending at text[:end] is a protected abbreviation.
func isAbbreviation(text string, end int) bool {
	wordStart := strings.LastIndexFunc(text[:end], unicode.IsSpace) + 1
	word := strings.ToLower(strings.TrimLeft(text[wordStart:end], `"'([`))
	_, ok := abbreviations[word]
	return ok
}

// splitSentences splits on terminal punctuation followed by whitespace,
// except after known abbreviations.
func splitSentences(text string) []segment {
	var segments []segment
	cursor := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(text, -1) {
		punctEnd := m[0] + len(strings.TrimRightFunc(text[m[0]:m[1]], unicode.IsSpace))
		if isAbbreviation(text, punctEnd) {
			continue
		}
		if seg, ok := newSegment(text, cursor, punctEnd); ok {
			segments = append(segments, seg)
		}
		cursor = m[1]
	}
	if seg, ok := newSegment(text, cursor, len(text)); ok {
		segments = append(segments, seg)
	}
	return segments
}

// splitParagraphs splits on blank lines.
func splitParagraphs(text string) []segment {
	var segments []segment
	cursor := 0
	for _, m := range paragraphBoundary.FindAllStringIndex(text, -1) {
		if seg, ok := newSegment(text, cursor, m[0]); ok {
			segments = append(segments, seg)
		}
		cursor = m[1]
	}
	if seg, ok := newSegment(text, cursor, len(text)); ok {
		segments = append(segments, seg)
	}
	return segments
}

// accumulate greedily packs segments into chunks. A chunk is flushed when the
// next segment would push it past chunkSize and it already meets
// minChunkSize; the next chunk is seeded with the flushed chunk's last
// overlap characters.
func (p *Processor) accumulate(text string, segments []segment, sep string) []domain.TextChunk {
	var (
		chunks  []domain.TextChunk
		buf     string
		carried int // bytes at the start of buf copied from the previous chunk
		start   = -1
		end     int
	)

	for _, seg := range p.splitOversized(segments) {
		candidate := join(buf, sep, seg.text)
		if start >= 0 && runeLen(candidate) > p.chunkSize && runeLen(buf) >= p.minChunkSize {
			chunks = append(chunks, newChunk(buf, len(chunks), start, end))
			buf = lastRunes(buf, p.overlap)
			carried = len(buf)
			start = -1
			candidate = join(buf, sep, seg.text)
		}
		buf = candidate
		if start < 0 {
			start = seg.start
		}
		end = seg.end
	}

	if start < 0 {
		return chunks
	}

	switch {
	case runeLen(buf) >= p.minChunkSize:
		chunks = append(chunks, newChunk(buf, len(chunks), start, end))
	case len(chunks) > 0:
		// Fold a short remainder into the previous chunk.
		remainder := buf[carried:]
		if carried == 0 {
			remainder = sep + remainder
		}
		last := &chunks[len(chunks)-1]
		last.Text += remainder
		last.EndChar = end
	case runeLen(strings.TrimSpace(text)) >= p.minChunkSize:
		chunks = append(chunks, newChunk(buf, 0, start, end))
	}

	return chunks
}

// splitOversized breaks any segment longer than chunkSize into chunkSize pieces.
func (p *Processor) splitOversized(segments []segment) []segment {
	out := make([]segment, 0, len(segments))
	for _, seg := range segments {
		if runeLen(seg.text) <= p.chunkSize {
			out = append(out, seg)
			continue
		}
		offsets := runeOffsets(seg.text)
		n := len(offsets) - 1
		for s := 0; s < n; s += p.chunkSize {
			e := min(s+p.chunkSize, n)
			if piece, ok := newSegment(seg.text, offsets[s], offsets[e]); ok {
				piece.start += seg.start
				piece.end += seg.start
				out = append(out, piece)
			}
		}
	}
	return out
}

// splitCharacters chunks by a fixed stride of chunkSize-overlap characters,
// dropping a trailing fragment shorter than minChunkSize.
func (p *Processor) splitCharacters(text string) []domain.TextChunk {
	offsets := runeOffsets(text)
	n := len(offsets) - 1
	stride := p.chunkSize - p.overlap
	if stride <= 0 {
		stride = p.chunkSize
	}

	var chunks []domain.TextChunk
	prevEnd := 0
	for s := 0; s < n; s += stride {
		e := min(s+p.chunkSize, n)
		if e-s < p.minChunkSize {
			break
		}
		startByte := offsets[max(s, prevEnd)]
		chunks = append(chunks, newChunk(text[offsets[s]:offsets[e]], len(chunks), startByte, offsets[e]))
		prevEnd = e
		if e == n {
			break
		}
	}
	return chunks
}

func newChunk(text string, index, start, end int) domain.TextChunk {
	return domain.TextChunk{
		ID:        chunkID(text, index),
		Text:      text,
		Index:     index,
		StartChar: start,
		EndChar:   end,
	}
}

// chunkID hashes the first characters of the text together with the index.
func chunkID(text string, index int) string {
	prefix := text
	if runeLen(prefix) > idPrefixLength {
		prefix = string([]rune(prefix)[:idPrefixLength])
	}
	sum := sha256.Sum256([]byte(prefix + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:8])
}

func join(buf, sep, next string) string {
	if buf == "" {
		return next
	}
	return buf + sep + next
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// lastRunes returns the final n characters of s.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}

// runeOffsets returns the byte offset of every rune start plus len(s).
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
