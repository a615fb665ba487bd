package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SyncStateStore persists what was last indexed per source ID.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state for a source ID.
	// Returns domain.ErrNotFound if nothing was recorded.
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)

	// List returns every state whose source ID equals prefix or starts with
	// prefix + "/", ordered by source ID.
	List(ctx context.Context, prefix string) ([]domain.SyncState, error)

	// Delete removes sync state for a source ID. Deleting a missing entry is
	// not an error.
	Delete(ctx context.Context, sourceID string) error

	// Reset removes every entry. Used when the collection is dropped.
	Reset(ctx context.Context) error
}
