package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// StageObserver receives query pipeline stage boundaries.
// Observers are called synchronously and must not block.
type StageObserver interface {
	// OnStageStart is called before a stage runs.
	OnStageStart(ctx context.Context, stage domain.Stage)

	// OnStageEnd is called after a stage finishes, with its error if any.
	OnStageEnd(ctx context.Context, event domain.StageEvent)
}
