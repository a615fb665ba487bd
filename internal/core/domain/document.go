package domain

import "fmt"

// Document is a unit of raw text handed to the indexer.
// It is produced by a caller or by the filesystem loader.
type Document struct {
	// SourceID identifies the document. Chunk point IDs derive from it.
	SourceID string

	// Path is the original location, if any.
	Path string

	// Filename is the display name used to label context blocks.
	Filename string

	// Content is the full plain text before chunking.
	Content string

	// Metadata contains caller-supplied key-value pairs copied onto every point.
	Metadata map[string]any
}

// Chunk is a contiguous, trimmed segment of a document's text.
// Chunks are immutable once produced.
type Chunk struct {
	// SourceID links to the originating document.
	SourceID string

	// Index is the zero-based ordinal within the source.
	Index int

	// Text is the trimmed chunk content. Never empty.
	Text string

	// ByteOffset is where Text starts in the source text.
	ByteOffset int
}

// PointID returns the vector index identifier for this chunk.
func (c Chunk) PointID() string {
	return ChunkPointID(c.SourceID, c.Index)
}

// ChunkPointID builds the "{sourceID}:{index}" point identifier.
func ChunkPointID(sourceID string, index int) string {
	return fmt.Sprintf("%s:%d", sourceID, index)
}
