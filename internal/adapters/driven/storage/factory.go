// Package storage selects and constructs the configured vector index and
// the sync state store that tracks what was indexed into it.
package storage

import (
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// NewVectorIndex builds the adapter named by settings.Backend. Remote
// backends are not contacted until the first operation.
func NewVectorIndex(settings domain.VectorStoreSettings) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(settings.Collection), nil

	case domain.VectorBackendSQLite, "":
		return sqlite.NewVectorIndex(settings.Path, settings.Collection)

	case domain.VectorBackendPgVector:
		return pgvector.NewVectorIndex(settings.DSN, settings.Collection)

	case domain.VectorBackendQdrant:
		return qdrant.NewVectorIndex(qdrant.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: settings.Collection,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}

// NewSyncStateStore builds the store that records indexed documents. The
// memory backend keeps state in memory; every other backend records it in
// the SQLite database at settings.Path, so re-runs of the CLI see it.
// The returned close function releases the database.
func NewSyncStateStore(settings domain.VectorStoreSettings) (driven.SyncStateStore, func() error, error) {
	if settings.Backend == domain.VectorBackendMemory {
		return memory.NewSyncStateStore(), func() error { return nil }, nil
	}

	store, err := sqlite.NewStore(settings.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening sync state: %w", err)
	}
	return store.SyncStateStore(), store.Close, nil
}
