package services

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// keywordEmbedder maps text onto one axis per keyword, plus a constant axis
// so no vector is all zeros.
type keywordEmbedder struct {
	keywords []string
	err      error
	batchErr error
	wrongDim bool

	mu    sync.Mutex
	calls int
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(e.keywords)+1)
	for i, k := range e.keywords {
		v[i] = float32(strings.Count(strings.ToLower(text), strings.ToLower(k)))
	}
	v[len(e.keywords)] = 0.1
	if e.wrongDim {
		v = append(v, 0)
	}
	return v
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int { return len(e.keywords) + 1 }
func (e *keywordEmbedder) ModelName() string { return "keywords" }
func (e *keywordEmbedder) Ping(context.Context) error { return e.err }
func (e *keywordEmbedder) Close() error { return nil }

// echoLLM returns a fixed answer, or the context section of the prompt when
// answer is empty, and records every prompt.
type echoLLM struct {
	answer  string
	err     error
	pingErr error
	onCall  func()

	mu      sync.Mutex
	prompts []string
}

func (l *echoLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()
	if l.onCall != nil {
		l.onCall()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.err != nil {
		return "", l.err
	}
	if l.answer != "" {
		return l.answer, nil
	}
	return prompt, nil
}

func (l *echoLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prompts) == 0 {
		return ""
	}
	return l.prompts[len(l.prompts)-1]
}

func (l *echoLLM) ModelName() string { return "echo" }
func (l *echoLLM) Ping(context.Context) error { return l.pingErr }
func (l *echoLLM) Close() error { return nil }

// scriptedIndex wraps a real index and injects failures.
type scriptedIndex struct {
	driven.VectorIndex

	mu           sync.Mutex
	notReadyLeft int // Search and Upsert report not ready this many times
	extraResults []domain.SearchResult
	searchErr    error
	statsErr     error
	ensureCalls  int
	deleted      [][]string
}

func (s *scriptedIndex) EnsureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	s.ensureCalls++
	s.mu.Unlock()
	return s.VectorIndex.EnsureCollection(ctx, dim)
}

func (s *scriptedIndex) takeNotReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notReadyLeft > 0 {
		s.notReadyLeft--
		return true
	}
	return false
}

func (s *scriptedIndex) Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	if s.takeNotReady() {
		return nil, domain.ErrIndexNotReady
	}
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	results, err := s.VectorIndex.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return append(results, s.extraResults...), nil
}

func (s *scriptedIndex) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if s.takeNotReady() {
		return domain.ErrIndexNotReady
	}
	return s.VectorIndex.Upsert(ctx, points)
}

func (s *scriptedIndex) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, ids)
	s.mu.Unlock()
	return s.VectorIndex.Delete(ctx, ids)
}

func (s *scriptedIndex) Stats(ctx context.Context) (domain.CollectionStats, error) {
	if s.statsErr != nil {
		return domain.CollectionStats{}, s.statsErr
	}
	return s.VectorIndex.Stats(ctx)
}

// recordingObserver captures stage boundaries in order.
type recordingObserver struct {
	mu     sync.Mutex
	starts []domain.Stage
	ends   []domain.StageEvent
}

func (o *recordingObserver) OnStageStart(_ context.Context, stage domain.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, stage)
}

func (o *recordingObserver) OnStageEnd(_ context.Context, e domain.StageEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ends = append(o.ends, e)
}

// staticPrompts is an in-memory driven.PromptStore.
type staticPrompts map[string]string

func (p staticPrompts) Load(name string) (string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return "", domain.ErrNotFound
}

func (p staticPrompts) Reload() {}
