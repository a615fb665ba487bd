package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure SyncService implements the interface.
var _ driving.SyncService = (*SyncService)(nil)

// SyncService indexes document sources through the RAG service and records
// what it wrote, so unchanged documents are skipped and removed or shortened
// documents leave no stale points behind.
type SyncService struct {
	rag      driving.RAGService
	states   driven.SyncStateStore
	pipeline string
	now      func() time.Time

	// mu serialises writes so a watch and a sync never interleave on one
	// document.
	mu sync.Mutex
}

// SyncOption configures the sync service.
type SyncOption func(*SyncService)

// WithPipeline sets the description of the indexing pipeline. It is part
// of every recorded hash, so changing it re-indexes documents on the next
// sync.
func WithPipeline(description string) SyncOption {
	return func(s *SyncService) {
		s.pipeline = description
	}
}

// NewSyncService creates a sync service.
func NewSyncService(rag driving.RAGService, states driven.SyncStateStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		rag:    rag,
		states: states,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// syncOutcome is what happened to one document.
type syncOutcome int

const (
	outcomeIndexed syncOutcome = iota
	outcomeUnchanged
)

// Sync walks src, indexes new and changed documents, and deletes documents
// recorded under src.SourceID() that the walk no longer produced. A failed
// walk deletes nothing.
//
//nolint:gocognit // Orchestration loop over two channels
func (s *SyncService) Sync(
	ctx context.Context, src driven.DocumentSource, metadata map[string]any,
) (*domain.SyncReport, error) {
	if src == nil {
		return nil, fmt.Errorf("sync: %w: no document source", domain.ErrInvalidInput)
	}

	logger.Info("Starting sync for %s", src.SourceID())

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	report := &domain.SyncReport{}
	seen := make(map[string]bool)
	docsCh, errsCh := src.Walk(walkCtx)

	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return report, fmt.Errorf("sync %s: %w", src.SourceID(), ctx.Err())

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				return report, fmt.Errorf("sync %s: %w", src.SourceID(), err)
			}

		case doc, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			seen[doc.SourceID] = true

			outcome, chunks, err := s.apply(ctx, doc, metadata)
			if err != nil {
				if fatal(err) {
					return report, fmt.Errorf("sync %s: %w", src.SourceID(), err)
				}
				report.Failed++
				logger.Warn("Failed to index %s: %v", doc.SourceID, err)
				continue
			}
			switch outcome {
			case outcomeUnchanged:
				report.Unchanged++
			default:
				report.Indexed++
				report.Chunks += chunks
			}
		}
	}

	states, err := s.states.List(ctx, src.SourceID())
	if err != nil {
		return report, fmt.Errorf("sync %s: list sync state: %w", src.SourceID(), err)
	}
	for _, st := range states {
		if seen[st.SourceID] {
			continue
		}
		if err := s.remove(ctx, st.SourceID); err != nil {
			if fatal(err) {
				return report, fmt.Errorf("sync %s: %w", src.SourceID(), err)
			}
			report.Failed++
			logger.Warn("Failed to delete %s: %v", st.SourceID, err)
			continue
		}
		report.Deleted++
	}

	logger.Info("Sync complete: %d indexed, %d unchanged, %d deleted, %d failed",
		report.Indexed, report.Unchanged, report.Deleted, report.Failed)
	return report, nil
}

// Watch applies changes from src until ctx is done. Per-document failures
// are logged and the watch continues.
func (s *SyncService) Watch(ctx context.Context, src driven.DocumentSource, metadata map[string]any) error {
	if src == nil {
		return fmt.Errorf("watch: %w: no document source", domain.ErrInvalidInput)
	}

	changes, err := src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", src.SourceID(), err)
	}
	logger.Info("Watching %s", src.SourceID())

	for change := range changes {
		var err error
		switch change.Type {
		case domain.ChangeCreated, domain.ChangeUpdated:
			var outcome syncOutcome
			var chunks int
			outcome, chunks, err = s.apply(ctx, change.Document, metadata)
			if err == nil && outcome == outcomeIndexed {
				logger.Info("Indexed %s (%s): %d chunks", change.Document.SourceID, change.Type, chunks)
			}
		case domain.ChangeDeleted:
			err = s.remove(ctx, change.Document.SourceID)
			if err == nil {
				logger.Info("Removed %s", change.Document.SourceID)
			}
		}

		if err != nil {
			if fatal(err) {
				return fmt.Errorf("watch %s: %w", src.SourceID(), err)
			}
			logger.Warn("Failed to apply %s change to %s: %v", change.Type, change.Document.SourceID, err)
		}
	}
	return nil
}

// IndexText indexes text as one recorded document.
func (s *SyncService) IndexText(
	ctx context.Context, sourceID, text string, metadata map[string]any,
) (int, error) {
	_, n, err := s.apply(ctx, domain.Document{SourceID: sourceID, Content: text}, metadata)
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", sourceID, err)
	}
	return n, nil
}

// Forget deletes every document recorded under prefix.
func (s *SyncService) Forget(ctx context.Context, prefix string) (int, error) {
	states, err := s.states.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("forget %s: %w", prefix, err)
	}

	removed := 0
	for _, st := range states {
		if err := s.remove(ctx, st.SourceID); err != nil {
			return removed, fmt.Errorf("forget %s: %w", prefix, err)
		}
		removed++
	}
	return removed, nil
}

// Reset drops the collection and the sync records that described it.
func (s *SyncService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rag.Reset(ctx); err != nil {
		return err
	}
	if err := s.states.Reset(ctx); err != nil {
		return fmt.Errorf("reset sync state: %w", err)
	}
	return nil
}

// apply indexes doc unless its text, metadata and pipeline match the
// recorded hash. When the new version has fewer chunks the old tail is
// deleted.
func (s *SyncService) apply(
	ctx context.Context, doc domain.Document, metadata map[string]any,
) (syncOutcome, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md := documentMetadata(metadata, doc)
	hash := domain.IndexHash(doc.Content, md, s.pipeline)
	prev, err := s.states.Get(ctx, doc.SourceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, 0, fmt.Errorf("get sync state: %w", err)
	}
	if prev != nil && prev.ContentHash == hash {
		logger.Debug("Unchanged: %s", doc.SourceID)
		return outcomeUnchanged, prev.Chunks, nil
	}

	n, err := s.rag.IndexDocument(ctx, doc.SourceID, doc.Content, md)
	if err != nil {
		return 0, 0, err
	}

	if prev != nil && prev.Chunks > n {
		if err := s.rag.DeleteChunks(ctx, doc.SourceID, n, prev.Chunks); err != nil {
			return 0, 0, err
		}
	}

	err = s.states.Save(ctx, domain.SyncState{
		SourceID:    doc.SourceID,
		Chunks:      n,
		ContentHash: hash,
		LastSync:    s.now(),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("save sync state: %w", err)
	}
	return outcomeIndexed, n, nil
}

// remove deletes a recorded document's points and its record. An
// unrecorded document has nothing to delete.
func (s *SyncService) remove(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.states.Get(ctx, sourceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}

	if err := s.rag.DeleteDocument(ctx, sourceID, prev.Chunks); err != nil {
		return err
	}
	if err := s.states.Delete(ctx, sourceID); err != nil {
		return fmt.Errorf("delete sync state: %w", err)
	}
	return nil
}

// documentMetadata copies the caller's metadata and labels the document
// with its filename unless the caller set one.
func documentMetadata(base map[string]any, doc domain.Document) map[string]any {
	md := make(map[string]any, len(base)+1)
	for k, v := range base {
		md[k] = v
	}
	if _, ok := md[domain.MetaFilename]; !ok && doc.Filename != "" {
		md[domain.MetaFilename] = doc.Filename
	}
	return md
}

// fatal reports errors that would repeat for every document: bad input from
// the caller, or cancellation.
func fatal(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindInput, domain.KindCanceled:
		return true
	}
	return false
}
