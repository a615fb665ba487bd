package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// SyncService keeps the vector index in step with a document source.
type SyncService interface {
	// Sync indexes every new or changed document from src and deletes the
	// points of documents that disappeared since the last sync. Metadata is
	// copied onto every document and must carry the scope key.
	Sync(ctx context.Context, src driven.DocumentSource, metadata map[string]any) (*domain.SyncReport, error)

	// Watch applies changes from src until ctx is done.
	Watch(ctx context.Context, src driven.DocumentSource, metadata map[string]any) error

	// IndexText indexes one document given as text and records it like a
	// synced document: a shorter re-index deletes the old tail and Forget
	// removes it. Returns the number of chunks now stored.
	IndexText(ctx context.Context, sourceID, text string, metadata map[string]any) (int, error)

	// Forget deletes every point recorded under a source ID prefix and
	// returns the number of documents removed.
	Forget(ctx context.Context, prefix string) (int, error)

	// Reset drops the collection and every sync record.
	Reset(ctx context.Context) error
}
