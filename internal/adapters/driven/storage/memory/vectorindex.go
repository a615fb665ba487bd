package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Search is a brute-force cosine scan, so it suits tests and small corpora.
type VectorIndex struct {
	mu        sync.RWMutex
	name      string
	dimension int
	created   bool
	points    map[string]domain.IndexedPoint
}

// NewVectorIndex creates an empty in-memory index. The collection does not
// exist until EnsureCollection is called.
func NewVectorIndex(name string) *VectorIndex {
	if name == "" {
		name = "documents"
	}
	return &VectorIndex{
		name:   name,
		points: make(map[string]domain.IndexedPoint),
	}
}

// EnsureCollection creates the collection with the given dimension.
func (v *VectorIndex) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.created {
		if v.dimension != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				domain.ErrDimensionMismatch, v.name, v.dimension, dimension)
		}
		return nil
	}

	v.created = true
	v.dimension = dimension
	return nil
}

// Upsert validates the whole batch before writing any point.
func (v *VectorIndex) Upsert(_ context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.created {
		return fmt.Errorf("%w: collection %q", domain.ErrIndexNotReady, v.name)
	}
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point id is empty", domain.ErrInvalidInput)
		}
		if len(p.Vector) != v.dimension {
			return fmt.Errorf("%w: point %q has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), v.dimension)
		}
	}

	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		v.points[p.ID] = domain.IndexedPoint{
			ID:       p.ID,
			Vector:   vec,
			Metadata: vecmath.CopyMetadata(p.Metadata),
		}
	}
	return nil
}

// Search scans every point matching the filter.
func (v *VectorIndex) Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.created {
		return nil, fmt.Errorf("%w: collection %q", domain.ErrIndexNotReady, v.name)
	}
	if len(q.Vector) != v.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(q.Vector), v.dimension)
	}

	if q.Limit <= 0 {
		return []domain.SearchResult{}, nil
	}

	results := make([]domain.SearchResult, 0, min(q.Limit, len(v.points)))
	for _, p := range v.points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.Filter.Matches(p.Metadata) {
			continue
		}
		score := vecmath.Cosine(q.Vector, p.Vector)
		if score < q.ScoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       p.ID,
			Score:    score,
			Metadata: vecmath.CopyMetadata(p.Metadata),
		})
	}

	return vecmath.Rank(results, q.Limit), nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (v *VectorIndex) Delete(_ context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		delete(v.points, id)
	}
	return nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(_ context.Context) (domain.CollectionStats, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.created {
		return domain.CollectionStats{}, fmt.Errorf("%w: collection %q", domain.ErrIndexNotReady, v.name)
	}
	return domain.CollectionStats{
		Name:      v.name,
		Dimension: v.dimension,
		Count:     len(v.points),
		Backend:   domain.VectorBackendMemory,
	}, nil
}

// Reset drops the collection and all points.
func (v *VectorIndex) Reset(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.points = make(map[string]domain.IndexedPoint)
	v.created = false
	v.dimension = 0
	return nil
}

// Close releases resources (no-op for memory index).
func (v *VectorIndex) Close() error {
	return nil
}
