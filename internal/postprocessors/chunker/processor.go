// Package chunker splits raw document text into overlapping, boundary-snapped
// segments for embedding and retrieval.
//
// Sizes are measured in runes so multi-byte text is never cut mid-character.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.PostProcessor = (*Chunker)(nil)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 50

// DefaultMaxParagraphSize is the default cap for paragraph-packed chunks.
const DefaultMaxParagraphSize = 1000

// paragraphSeparator splits and joins paragraphs.
const paragraphSeparator = "\n\n"

// Chunker is stateless after construction and safe for concurrent use.
type Chunker struct {
	chunkSize    int
	overlap      int
	maxParagraph int
	strategy     domain.ChunkStrategy
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithMaxParagraphSize sets the cap used by ChunkByParagraph.
func WithMaxParagraphSize(size int) Option {
	return func(c *Chunker) {
		c.maxParagraph = size
	}
}

// WithStrategy selects which algorithm Process uses.
func WithStrategy(s domain.ChunkStrategy) Option {
	return func(c *Chunker) {
		c.strategy = s
	}
}

// New creates a chunker. An overlap that is not smaller than the chunk size
// would stop the window from advancing, so it is rejected here.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize:    DefaultChunkSize,
		overlap:      DefaultChunkOverlap,
		maxParagraph: DefaultMaxParagraphSize,
		strategy:     domain.ChunkStrategyFixed,
	}

	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.chunkSize <= 0:
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, c.chunkSize)
	case c.overlap < 0:
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidInput, c.overlap)
	case c.overlap >= c.chunkSize:
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidInput, c.overlap, c.chunkSize)
	case c.maxParagraph <= 0:
		return nil, fmt.Errorf("%w: max paragraph size must be positive, got %d",
			domain.ErrInvalidInput, c.maxParagraph)
	case !c.strategy.IsValid():
		return nil, fmt.Errorf("%w: unknown chunk strategy %q", domain.ErrInvalidInput, c.strategy)
	}

	return c, nil
}

// FromSettings builds a chunker from configuration.
func FromSettings(s domain.ChunkerSettings) (*Chunker, error) {
	opts := []Option{
		WithChunkSize(s.Size),
		WithOverlap(s.Overlap),
		WithMaxParagraphSize(s.MaxParagraph),
	}
	if s.Strategy != "" {
		opts = append(opts, WithStrategy(s.Strategy))
	}
	return New(opts...)
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Chunk splits text into fixed-size windows snapped back to whitespace.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	spans := c.fixedSpans(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

// ChunkByParagraph packs whole paragraphs into chunks of at most the
// configured size. A paragraph longer than the cap becomes its own chunk.
func (c *Chunker) ChunkByParagraph(text string) []string {
	spans := c.paragraphSpans(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

// Process implements driven.PostProcessor. It replaces any incoming chunks
// with the document content split by the configured strategy.
func (c *Chunker) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	return c.Split(doc.SourceID, doc.Content), nil
}

// Split chunks text with the configured strategy and returns domain chunks
// numbered from zero.
func (c *Chunker) Split(sourceID, text string) []domain.Chunk {
	var spans []span
	if c.strategy == domain.ChunkStrategyParagraph {
		spans = c.paragraphSpans(text)
	} else {
		spans = c.fixedSpans(text)
	}
	return toChunks(sourceID, spans)
}

// SplitParagraphs chunks text by paragraph regardless of strategy.
func (c *Chunker) SplitParagraphs(sourceID, text string) []domain.Chunk {
	return toChunks(sourceID, c.paragraphSpans(text))
}

// span is a trimmed chunk and its byte offset in the source text.
type span struct {
	text   string
	offset int
}

func toChunks(sourceID string, spans []span) []domain.Chunk {
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			SourceID:   sourceID,
			Index:      i,
			Text:       s.text,
			ByteOffset: s.offset,
		}
	}
	return chunks
}

func (c *Chunker) fixedSpans(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	// byteAt[i] is the byte offset of runes[i]; byteAt[n] == len(text).
	byteAt := make([]int, n+1)
	pos := 0
	for i, r := range runes {
		byteAt[i] = pos
		pos += utf8.RuneLen(r)
	}
	byteAt[n] = pos

	spans := make([]span, 0, n/(c.chunkSize-c.overlap)+1)
	start := 0
	for start < n {
		// end may run past n on the last windows; only the slice is clamped
		// so the advance below stays start = end - overlap.
		end := start + c.chunkSize
		if end < n {
			for i := end; i > start+c.chunkSize/2; i-- {
				if isBoundary(runes[i]) {
					end = i + 1
					break
				}
			}
		}

		raw := text[byteAt[start]:byteAt[min(end, n)]]
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
			spans = append(spans, span{text: trimmed, offset: byteAt[start] + lead})
		}

		// A snapped end can sit close enough to start that the overlap would
		// move the window backwards. Continue from end in that case.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

func (c *Chunker) paragraphSpans(text string) []span {
	var (
		spans     []span
		buf       strings.Builder
		bufLen    int
		bufOffset int
		cursor    int
	)

	flush := func() {
		if buf.Len() > 0 {
			spans = append(spans, span{text: buf.String(), offset: bufOffset})
			buf.Reset()
			bufLen = 0
		}
	}

	for _, part := range strings.Split(text, paragraphSeparator) {
		partStart := cursor
		cursor += len(part) + len(paragraphSeparator)

		para := strings.TrimSpace(part)
		if para == "" {
			continue
		}
		paraOffset := partStart + strings.Index(part, para)
		paraLen := utf8.RuneCountInString(para)

		if buf.Len() > 0 && bufLen+paraLen+utf8.RuneCountInString(paragraphSeparator) <= c.maxParagraph {
			buf.WriteString(paragraphSeparator)
			buf.WriteString(para)
			bufLen += paraLen + utf8.RuneCountInString(paragraphSeparator)
			continue
		}

		flush()
		buf.WriteString(para)
		bufLen = paraLen
		bufOffset = paraOffset
	}
	flush()

	return spans
}

func isBoundary(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
