package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RAGService is the retrieval pipeline entry point used by the CLI, the MCP
// server and the chat TUI.
type RAGService interface {
	// Query answers a question using chunks retrieved from the requested scope.
	// On any failure it returns a typed error and no answer.
	Query(ctx context.Context, q domain.QueryContext) (*domain.RetrievalResponse, error)

	// IndexDocument chunks, embeds and upserts rawText, returning the number of
	// points written. Point IDs are "{sourceID}:{index}".
	IndexDocument(ctx context.Context, sourceID, rawText string, metadata map[string]any) (int, error)

	// DeleteDocument removes the first chunkCount points of a source.
	DeleteDocument(ctx context.Context, sourceID string, chunkCount int) error

	// DeleteChunks removes the points {sourceID}:from .. {sourceID}:to-1.
	// Re-indexing a shorter document uses it to drop the old tail.
	DeleteChunks(ctx context.Context, sourceID string, from, to int) error

	// Stats describes the vector collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)

	// Reset drops all indexed points so the corpus can be rebuilt.
	Reset(ctx context.Context) error

	// Ping checks the embedding, generation and vector backends.
	Ping(ctx context.Context) error
}
