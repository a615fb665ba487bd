// Package domain defines the core entities of the retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Raw text plus metadata handed to the indexer
//   - Chunk: A trimmed segment of a document's text
//   - IndexedPoint: A vector plus metadata stored in the vector index
//   - SearchResult: A scored hit returned by the vector index
//   - QueryContext / RetrievalResponse: One question and its grounded answer
//   - SyncState: What was last indexed for a source ID
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
