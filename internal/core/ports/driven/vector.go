package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorIndex stores (id, vector, metadata) points and answers scoped
// nearest-neighbour queries using cosine similarity.
//
// Implementations must be safe for concurrent use. Scores returned by Search
// are similarities where higher is better, whatever the backend's native metric.
type VectorIndex interface {
	// EnsureCollection creates the backing collection if absent. It is a no-op
	// when the collection exists with the same dimension and returns
	// domain.ErrDimensionMismatch when it exists with a different one.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points by ID. A failed batch is reported and
	// leaves no partially visible points.
	Upsert(ctx context.Context, points []domain.IndexedPoint) error

	// Search returns at most q.Limit results matching q.Filter with a score of
	// at least q.ScoreThreshold, ordered by descending score.
	// Returns domain.ErrIndexNotReady when the collection does not exist.
	Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error)

	// Delete removes points by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Stats describes the collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)

	// Reset drops the collection and all its points.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}
