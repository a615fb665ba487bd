package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// RAGService answers questions from scoped vector retrieval and indexes raw
// text into the same collection.
//
// Configuration is fixed at construction. The only mutable state is the
// flag recording that the collection exists.
type RAGService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	llm      driven.LLMService
	pipeline driven.PostProcessorPipeline

	assembler *ContextAssembler
	prompts   *PromptBuilder
	promptSrc driven.PromptStore
	locale    domain.Locale

	scopeKey    string
	threshold   float64
	defaultTopK int
	genOpts     driven.GenerateOptions
	observers   []driven.StageObserver
	newQueryID  func() string

	ensureMu sync.Mutex
	ensured  bool
}

// RAGOption configures a RAGService.
type RAGOption func(*RAGService)

// WithScopeKey sets the metadata key used for tenant isolation.
func WithScopeKey(key string) RAGOption {
	return func(s *RAGService) {
		if key != "" {
			s.scopeKey = key
		}
	}
}

// WithScoreThreshold sets the minimum similarity of retrieved chunks.
func WithScoreThreshold(threshold float64) RAGOption {
	return func(s *RAGService) {
		s.threshold = threshold
	}
}

// WithDefaultTopK sets the retrieval count used when a query gives zero.
func WithDefaultTopK(k int) RAGOption {
	return func(s *RAGService) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// WithLocale selects the language of labels, sentinel and preamble.
func WithLocale(locale domain.Locale) RAGOption {
	return func(s *RAGService) {
		s.locale = locale
	}
}

// WithPromptStore loads preambles from store instead of the built-ins.
func WithPromptStore(store driven.PromptStore) RAGOption {
	return func(s *RAGService) {
		s.promptSrc = store
	}
}

// WithGenerateOptions sets the options passed to every Generate call.
func WithGenerateOptions(opts driven.GenerateOptions) RAGOption {
	return func(s *RAGService) {
		s.genOpts = opts
	}
}

// WithObserver registers stage observers. They run in registration order.
func WithObserver(observers ...driven.StageObserver) RAGOption {
	return func(s *RAGService) {
		for _, o := range observers {
			if o != nil {
				s.observers = append(s.observers, o)
			}
		}
	}
}

// WithSettings applies the retrieval section of the application settings.
func WithSettings(settings domain.RAGSettings) RAGOption {
	return func(s *RAGService) {
		WithScopeKey(settings.ScopeKey)(s)
		WithScoreThreshold(settings.ScoreThreshold)(s)
		WithDefaultTopK(settings.TopK)(s)
		if settings.Locale != "" {
			s.locale = settings.Locale
		}
	}
}

// NewRAGService creates the pipeline. The LLM may be nil, in which case
// indexing works and Query fails with domain.ErrLLMUnavailable.
func NewRAGService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	llm driven.LLMService,
	pipeline driven.PostProcessorPipeline,
	opts ...RAGOption,
) *RAGService {
	s := &RAGService{
		embedder:    embedder,
		index:       index,
		llm:         llm,
		pipeline:    pipeline,
		locale:      domain.LocaleEnglish,
		scopeKey:    domain.DefaultScopeKey,
		defaultTopK: domain.DefaultTopK,
		newQueryID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.assembler = NewContextAssembler(s.locale)
	s.prompts = NewPromptBuilder(s.locale, s.promptSrc)
	return s
}

// ScopeKey returns the metadata key used for tenant isolation.
func (s *RAGService) ScopeKey() string {
	return s.scopeKey
}

// Query runs embedding, retrieval, context build, prompt build and
// generation in order. Cancellation is checked before every stage and
// before the response is returned.
func (s *RAGService) Query(ctx context.Context, q domain.QueryContext) (*domain.RetrievalResponse, error) {
	q, err := s.validateQuery(q)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("query: %w", domain.ErrEmbeddingUnavailable)
	}
	if s.llm == nil {
		return nil, fmt.Errorf("query: %w", domain.ErrLLMUnavailable)
	}

	if domain.QueryIDFromContext(ctx) == "" {
		ctx = domain.WithQueryID(ctx, s.newQueryID())
	}

	logger.Section("RAG Query")
	logger.Debug("Query %s: scope %s=%q, top_k=%d, history=%d turns",
		domain.QueryIDFromContext(ctx), s.scopeKey, q.ScopeID, q.TopK, len(q.History))

	var vector []float32
	err = s.runStage(ctx, domain.StageEmbedding, func(ctx context.Context) error {
		v, err := s.embedder.Embed(ctx, q.Question)
		if err != nil {
			return upstream(err)
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	err = s.runStage(ctx, domain.StageRetrieval, func(ctx context.Context) error {
		r, err := s.retrieve(ctx, domain.VectorQuery{
			Vector:         vector,
			Limit:          q.TopK,
			Filter:         domain.ScopeFilter{s.scopeKey: q.ScopeID},
			ScoreThreshold: s.threshold,
		})
		if err != nil {
			return err
		}
		results = s.dropForeignScopes(ctx, r, q.ScopeID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var contextText, historyText string
	err = s.runStage(ctx, domain.StageContextBuild, func(context.Context) error {
		contextText = s.assembler.BuildContext(results)
		historyText = s.assembler.BuildHistory(q.History)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var prompt string
	err = s.runStage(ctx, domain.StagePromptBuild, func(context.Context) error {
		prompt = s.prompts.Build(q.Question, contextText, historyText)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var answer string
	err = s.runStage(ctx, domain.StageGeneration, func(ctx context.Context) error {
		a, err := s.llm.Generate(ctx, prompt, s.genOpts)
		if err != nil {
			return upstream(err)
		}
		answer = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return &domain.RetrievalResponse{
		Answer:  answer,
		Sources: sourcesOf(results),
	}, nil
}

// IndexDocument chunks, embeds and upserts rawText. Every point carries the
// caller's metadata plus back-references to its document and chunk.
func (s *RAGService) IndexDocument(
	ctx context.Context, sourceID, rawText string, metadata map[string]any,
) (int, error) {
	if err := s.validateIndexRequest(sourceID, metadata); err != nil {
		return 0, fmt.Errorf("index %s: %w", sourceID, err)
	}
	if s.embedder == nil {
		return 0, fmt.Errorf("index %s: %w", sourceID, domain.ErrEmbeddingUnavailable)
	}

	doc := &domain.Document{
		SourceID: sourceID,
		Content:  rawText,
		Metadata: metadata,
	}
	doc.Filename, _ = metadata[domain.MetaFilename].(string)

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("index %s: chunking: %w", sourceID, err)
	}
	if len(chunks) == 0 {
		logger.Debug("Index %s: no content to index", sourceID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("index %s: embedding: %w", sourceID, upstream(err))
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("index %s: %w: %d embeddings for %d chunks",
			sourceID, domain.ErrUpstreamUnavailable, len(vectors), len(chunks))
	}

	dim := s.embedder.Dimensions()
	points := make([]domain.IndexedPoint, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dim {
			return 0, fmt.Errorf("index %s: %w: chunk %d has %d values, embedder reports %d",
				sourceID, domain.ErrDimensionMismatch, c.Index, len(vectors[i]), dim)
		}
		points[i] = domain.IndexedPoint{
			ID:       c.PointID(),
			Vector:   vectors[i],
			Metadata: pointMetadata(metadata, c),
		}
	}

	if err := s.upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("index %s: %w", sourceID, err)
	}

	logger.Info("Indexed %s: %d chunks", sourceID, len(points))
	return len(points), nil
}

// DeleteDocument removes the points {sourceID}:0 .. {sourceID}:chunkCount-1.
// A collection that does not exist has nothing to delete.
func (s *RAGService) DeleteDocument(ctx context.Context, sourceID string, chunkCount int) error {
	if chunkCount < 0 {
		return fmt.Errorf("delete %s: %w: chunk count must not be negative", sourceID, domain.ErrInvalidInput)
	}
	return s.DeleteChunks(ctx, sourceID, 0, chunkCount)
}

// DeleteChunks removes the points {sourceID}:from .. {sourceID}:to-1.
func (s *RAGService) DeleteChunks(ctx context.Context, sourceID string, from, to int) error {
	if strings.TrimSpace(sourceID) == "" {
		return fmt.Errorf("delete: %w: source ID is required", domain.ErrInvalidInput)
	}
	if from < 0 || to < from {
		return fmt.Errorf("delete %s: %w: invalid chunk range [%d, %d)", sourceID, domain.ErrInvalidInput, from, to)
	}
	if from == to {
		return nil
	}

	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, domain.ChunkPointID(sourceID, i))
	}

	err := s.index.Delete(ctx, ids)
	if err != nil && !errors.Is(err, domain.ErrIndexNotReady) {
		return fmt.Errorf("delete %s: %w", sourceID, err)
	}

	logger.Debug("Deleted %s: chunks %d..%d", sourceID, from, to-1)
	return nil
}

// Stats describes the vector collection.
func (s *RAGService) Stats(ctx context.Context) (domain.CollectionStats, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// Reset drops the collection and recreates it empty at the embedder's
// dimension, so the corpus can be rebuilt. A changed embedding model is
// picked up here.
func (s *RAGService) Reset(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.ensured = false

	if s.embedder == nil {
		return nil
	}
	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return fmt.Errorf("reset: recreate collection: %w", err)
	}
	s.ensured = true

	logger.Info("Collection reset")
	return nil
}

// Ping checks every backend and reports all failures together. A missing
// collection is healthy: it is created on first use.
func (s *RAGService) Ping(ctx context.Context) error {
	var errs []error

	if s.embedder == nil {
		errs = append(errs, fmt.Errorf("embedding: %w", domain.ErrEmbeddingUnavailable))
	} else if err := s.embedder.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	}

	if s.llm == nil {
		errs = append(errs, fmt.Errorf("llm: %w", domain.ErrLLMUnavailable))
	} else if err := s.llm.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("llm: %w", err))
	}

	if _, err := s.index.Stats(ctx); err != nil && !errors.Is(err, domain.ErrIndexNotReady) {
		errs = append(errs, fmt.Errorf("vector index: %w", err))
	}

	return errors.Join(errs...)
}

// runStage checks for cancellation, then runs fn between observer calls.
func (s *RAGService) runStage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("query: before %s: %w", stage, err)
	}

	for _, o := range s.observers {
		o.OnStageStart(ctx, stage)
	}

	start := time.Now()
	err := fn(ctx)

	event := domain.StageEvent{
		QueryID:  domain.QueryIDFromContext(ctx),
		Stage:    stage,
		Duration: time.Since(start),
		Err:      err,
	}
	for _, o := range s.observers {
		o.OnStageEnd(ctx, event)
	}

	if err != nil {
		return fmt.Errorf("query: %s: %w", stage, err)
	}
	return nil
}

// retrieve searches once. A missing collection is created and the search
// retried once; a second miss is an upstream failure.
func (s *RAGService) retrieve(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	results, err := s.index.Search(ctx, q)
	if !errors.Is(err, domain.ErrIndexNotReady) {
		return results, err
	}

	logger.Info("Collection not ready, creating it")
	if err := s.ensureCollection(ctx, true); err != nil {
		return nil, err
	}

	results, err = s.index.Search(ctx, q)
	if errors.Is(err, domain.ErrIndexNotReady) {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return results, err
}

// upsert writes points, creating the collection on first use. A missing
// collection after creation is retried once.
func (s *RAGService) upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if err := s.ensureCollection(ctx, false); err != nil {
		return err
	}

	err := s.index.Upsert(ctx, points)
	if !errors.Is(err, domain.ErrIndexNotReady) {
		return err
	}

	if err := s.ensureCollection(ctx, true); err != nil {
		return err
	}
	err = s.index.Upsert(ctx, points)
	if errors.Is(err, domain.ErrIndexNotReady) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return err
}

// ensureCollection creates the collection at most once per service unless
// force is set, which follows a not-ready error from the backend.
func (s *RAGService) ensureCollection(ctx context.Context, force bool) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if s.ensured && !force {
		return nil
	}
	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	s.ensured = true
	return nil
}

// dropForeignScopes removes results whose scope disagrees with the request.
// The filter passed to Search should make this impossible, so every drop is
// logged as a backend bug.
func (s *RAGService) dropForeignScopes(ctx context.Context, results []domain.SearchResult, scopeID string) []domain.SearchResult {
	kept := results[:0:0]
	for _, r := range results {
		if got := r.MetaString(s.scopeKey); got != scopeID {
			logger.Warn("Query %s: %v: result %s has %s=%q, requested %q; dropped",
				domain.QueryIDFromContext(ctx), domain.ErrScopeViolation, r.ID, s.scopeKey, got, scopeID)
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func (s *RAGService) validateQuery(q domain.QueryContext) (domain.QueryContext, error) {
	if strings.TrimSpace(q.Question) == "" {
		return q, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if q.TopK < 0 || q.TopK > domain.MaxTopK {
		return q, fmt.Errorf("%w: top_k must be between 0 and %d, got %d", domain.ErrInvalidInput, domain.MaxTopK, q.TopK)
	}
	if strings.TrimSpace(q.ScopeID) == "" {
		return q, fmt.Errorf("%w: scope is required", domain.ErrInvalidInput)
	}
	for i, turn := range q.History {
		if turn.Role == "" || turn.Content == "" {
			return q, fmt.Errorf("%w: history turn %d needs a role and content", domain.ErrInvalidInput, i)
		}
	}

	if q.TopK == 0 {
		q.TopK = s.defaultTopK
	}
	return q, nil
}

func (s *RAGService) validateIndexRequest(sourceID string, metadata map[string]any) error {
	if strings.TrimSpace(sourceID) == "" {
		return fmt.Errorf("%w: source ID is required", domain.ErrInvalidInput)
	}
	if domain.ScalarString(metadata[s.scopeKey]) == "" {
		return fmt.Errorf("%w: metadata must carry scope key %q", domain.ErrInvalidInput, s.scopeKey)
	}
	for k, v := range metadata {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: metadata %q must be a scalar, got %T", domain.ErrInvalidInput, k, v)
		}
	}
	return nil
}

// pointMetadata copies the caller's metadata and adds the back-references.
// Reserved keys always reflect the chunk, whatever the caller passed.
func pointMetadata(base map[string]any, c domain.Chunk) map[string]any {
	md := make(map[string]any, len(base)+4)
	for k, v := range base {
		md[k] = v
	}
	md[domain.MetaDocumentID] = c.SourceID
	md[domain.MetaChunkID] = c.PointID()
	md[domain.MetaChunkIndex] = c.Index
	md[domain.MetaContent] = c.Text
	return md
}

func sourcesOf(results []domain.SearchResult) []domain.Source {
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		chunkID := r.MetaString(domain.MetaChunkID)
		if chunkID == "" {
			chunkID = r.ID
		}
		sources = append(sources, domain.Source{
			DocumentID: r.MetaString(domain.MetaDocumentID),
			ChunkID:    chunkID,
			Filename:   r.MetaString(domain.MetaFilename),
			Score:      r.Score,
		})
	}
	return sources
}

// upstream marks a provider failure as retryable. Cancellation is the
// caller's doing and passes through unchanged.
func upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}
