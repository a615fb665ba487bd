package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentSource produces plain-text documents for indexing.
// The filesystem loader is the only implementation.
type DocumentSource interface {
	// SourceID returns the prefix every emitted document ID starts with.
	SourceID() string

	// Validate checks the source is readable.
	Validate(ctx context.Context) error

	// Walk emits every document. Both channels are closed when the walk
	// ends; a fatal error is sent on the error channel first.
	Walk(ctx context.Context) (<-chan domain.Document, <-chan error)

	// Watch emits changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan domain.DocumentChange, error)

	// Close releases resources.
	Close() error
}
