package services

import (
	"context"
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure LoggingObserver implements the interface.
var _ driven.StageObserver = LoggingObserver{}

// LoggingObserver writes stage boundaries through the logger package.
// Starts and successful ends are debug output; failures are warnings.
type LoggingObserver struct{}

// OnStageStart logs the stage name.
func (LoggingObserver) OnStageStart(ctx context.Context, stage domain.Stage) {
	logger.Debug("Query %s: %s started", domain.QueryIDFromContext(ctx), stage)
}

// OnStageEnd logs the duration, and the error if the stage failed.
func (LoggingObserver) OnStageEnd(_ context.Context, e domain.StageEvent) {
	switch {
	case e.Err == nil:
		logger.Debug("Query %s: %s finished in %s", e.QueryID, e.Stage, e.Duration)
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		logger.Debug("Query %s: %s canceled after %s", e.QueryID, e.Stage, e.Duration)
	default:
		logger.Warn("Query %s: %s failed after %s [%s]: %v", e.QueryID, e.Stage, e.Duration, domain.KindOf(e.Err), e.Err)
	}
}

// StageRecorder keeps the events of the most recent query, for callers that
// print a timing breakdown. Not safe for concurrent queries.
type StageRecorder struct {
	Events []domain.StageEvent
}

// OnStageStart resets the record when a new query begins.
func (r *StageRecorder) OnStageStart(_ context.Context, stage domain.Stage) {
	if stage == domain.StageEmbedding {
		r.Events = r.Events[:0]
	}
}

// OnStageEnd appends the event.
func (r *StageRecorder) OnStageEnd(_ context.Context, e domain.StageEvent) {
	r.Events = append(r.Events, e)
}
