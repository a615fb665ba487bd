package domain

import "fmt"

// Well-known metadata keys stored on every indexed point.
const (
	// MetaDocumentID back-references the originating document.
	MetaDocumentID = "document_id"

	// MetaChunkID back-references the originating chunk.
	MetaChunkID = "chunk_id"

	// MetaChunkIndex is the chunk ordinal within its document.
	MetaChunkIndex = "chunk_index"

	// MetaFilename labels the context block for this chunk.
	MetaFilename = "filename"

	// MetaContent holds the chunk text for context assembly.
	MetaContent = "content"

	// DefaultScopeKey is the metadata key used for tenant isolation.
	DefaultScopeKey = "department_id"
)

// IndexedPoint is a vector with its metadata as stored in the vector index.
// Updates are delete plus insert; a point is never modified in place.
type IndexedPoint struct {
	// ID is caller-assigned and unique within the index.
	ID string

	// Vector is the embedding. Its length must equal the collection dimension.
	Vector []float32

	// Metadata maps keys to scalar values. It must include the scope key.
	Metadata map[string]any
}

// ScopeFilter is an exact-match equality filter on metadata keys.
type ScopeFilter map[string]string

// Matches reports whether metadata satisfies every key in the filter.
// Values are compared by their string form so numeric scope IDs match.
func (f ScopeFilter) Matches(metadata map[string]any) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || ScalarString(got) != want {
			return false
		}
	}
	return true
}

// VectorQuery describes a scoped nearest-neighbour search.
type VectorQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// Limit is the maximum number of results.
	Limit int

	// Filter restricts results to matching metadata.
	Filter ScopeFilter

	// ScoreThreshold is the minimum similarity a result must reach.
	ScoreThreshold float64
}

// SearchResult is a single search hit. Score is a similarity: higher is better.
type SearchResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// MetaString returns a metadata value as a string, or "" when absent.
func (r SearchResult) MetaString(key string) string {
	v, ok := r.Metadata[key]
	if !ok {
		return ""
	}
	return ScalarString(v)
}

// CollectionStats describes the backing collection.
type CollectionStats struct {
	Name      string
	Dimension int
	Count     int
	Backend   VectorBackend
}

// ScalarString renders a metadata scalar the same way across backends.
// JSON round-trips turn integers into float64, so whole floats print without
// a fractional part.
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case float32:
		return ScalarString(float64(t))
	default:
		return fmt.Sprint(t)
	}
}
