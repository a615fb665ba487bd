package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

const alphaBetaText = "Alpha rules. Beta rules too."

type ragFixture struct {
	svc      *RAGService
	embedder *keywordEmbedder
	llm      *echoLLM
	index    *scriptedIndex
}

func newFixture(t *testing.T, opts ...RAGOption) *ragFixture {
	t.Helper()

	pipeline, err := postprocessors.NewIndexingPipeline(domain.ChunkerSettings{
		Strategy:     domain.ChunkStrategyFixed,
		Size:         20,
		Overlap:      5,
		MaxParagraph: 100,
	})
	require.NoError(t, err)

	f := &ragFixture{
		embedder: newKeywordEmbedder("alpha", "beta", "gamma"),
		llm:      &echoLLM{},
		index:    &scriptedIndex{VectorIndex: memory.NewVectorIndex("test")},
	}
	f.svc = NewRAGService(f.embedder, f.index, f.llm, pipeline, opts...)
	return f
}

func (f *ragFixture) mustIndex(t *testing.T, sourceID, text, scope string) int {
	t.Helper()
	n, err := f.svc.IndexDocument(context.Background(), sourceID, text, map[string]any{
		domain.DefaultScopeKey: scope,
		domain.MetaFilename:    sourceID + ".txt",
	})
	require.NoError(t, err)
	return n
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestRAGService_IndexThenQuery(t *testing.T) {
	f := newFixture(t)

	n := f.mustIndex(t, "doc-1", alphaBetaText, "eng")
	require.Equal(t, 2, n)

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{
		Question: "alpha",
		ScopeID:  "eng",
		TopK:     1,
	})
	require.NoError(t, err)

	require.Len(t, resp.Sources, 1)
	src := resp.Sources[0]
	assert.Equal(t, "doc-1", src.DocumentID)
	assert.Equal(t, "doc-1:0", src.ChunkID)
	assert.Equal(t, "doc-1.txt", src.Filename)
	assert.Greater(t, src.Score, 0.0)

	prompt := f.llm.lastPrompt()
	assert.Contains(t, prompt, "[doc-1.txt]\nAlpha rules. Beta")
	assert.Contains(t, prompt, "Question: alpha")
}

func TestRAGService_EmptyScopeAnswersWithSentinel(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	for _, scope := range []string{"sales", "nobody"} {
		resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: scope})
		require.NoError(t, err)

		assert.Contains(t, resp.Answer, NewContextAssembler(domain.LocaleEnglish).NoContextSentinel())
		assert.NotNil(t, resp.Sources)
		assert.Empty(t, resp.Sources)
	}
}

func TestRAGService_EmptyCollectionIsCreatedLazily(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 1, f.index.ensureCalls)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.embedder.Dimensions(), stats.Dimension)
}

func TestRAGService_ConcurrentScopesStayIsolated(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "eng-doc", "alpha beta gamma engineering notes", "eng")
	f.mustIndex(t, "sales-doc", "alpha beta gamma sales notes", "sales")

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		scope, want := "eng", "eng-doc"
		if i%2 == 1 {
			scope, want = "sales", "sales-doc"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha beta", ScopeID: scope, TopK: 10})
			if err != nil {
				errs <- err
				return
			}
			for _, s := range resp.Sources {
				if s.DocumentID != want {
					errs <- fmt.Errorf("scope %s got source from %s", scope, s.DocumentID)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestRAGService_Query_Validation(t *testing.T) {
	tests := []struct {
		name string
		q    domain.QueryContext
	}{
		{"empty question", domain.QueryContext{ScopeID: "eng"}},
		{"whitespace question", domain.QueryContext{Question: " \n\t", ScopeID: "eng"}},
		{"negative top_k", domain.QueryContext{Question: "q", ScopeID: "eng", TopK: -1}},
		{"oversized top_k", domain.QueryContext{Question: "q", ScopeID: "eng", TopK: 1 << 62}},
		{"missing scope", domain.QueryContext{Question: "q"}},
		{"history without role", domain.QueryContext{Question: "q", ScopeID: "eng",
			History: []domain.HistoryTurn{{Content: "hi"}}}},
		{"history without content", domain.QueryContext{Question: "q", ScopeID: "eng",
			History: []domain.HistoryTurn{{Role: domain.RoleUser}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			resp, err := f.svc.Query(context.Background(), tt.q)

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, domain.KindInput, domain.KindOf(err))
			assert.Zero(t, f.embedder.calls)
		})
	}
}

func TestRAGService_Query_DefaultTopK(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.mustIndex(t, fmt.Sprintf("doc-%d", i), "alpha", "eng")
	}

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, domain.DefaultTopK)

	f2 := newFixture(t, WithDefaultTopK(2))
	f2.mustIndex(t, "a", "alpha", "eng")
	f2.mustIndex(t, "b", "alpha", "eng")
	f2.mustIndex(t, "c", "alpha", "eng")

	resp, err = f2.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
}

func TestRAGService_Query_ScoreThreshold(t *testing.T) {
	f := newFixture(t, WithScoreThreshold(0.9))
	f.mustIndex(t, "alpha-doc", "alpha", "eng")
	f.mustIndex(t, "gamma-doc", "gamma", "eng")

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "alpha-doc", resp.Sources[0].DocumentID)
}

func TestRAGService_Query_SourcesKeepRetrievalOrder(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "weak", "alpha gamma", "eng")
	f.mustIndex(t, "strong", "alpha alpha", "eng")

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "strong", resp.Sources[0].DocumentID)
	assert.Equal(t, "weak", resp.Sources[1].DocumentID)
	assert.GreaterOrEqual(t, resp.Sources[0].Score, resp.Sources[1].Score)
}

func TestRAGService_Query_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("connection refused")

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.True(t, domain.IsRetryable(err))
	assert.Empty(t, f.llm.prompts)
}

func TestRAGService_Query_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("503 overloaded")

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), string(domain.StageGeneration))
}

func TestRAGService_Query_WithoutLLM(t *testing.T) {
	f := newFixture(t)
	f.svc.llm = nil

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	// Indexing does not need generation.
	_, err = f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	assert.NoError(t, err)
}

func TestRAGService_Query_IndexNotReadyRetriesOnce(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")
	f.index.notReadyLeft = 1

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Sources)
	assert.Equal(t, 2, f.index.ensureCalls)
}

func TestRAGService_Query_IndexNotReadyTwiceEscalates(t *testing.T) {
	f := newFixture(t)
	f.index.notReadyLeft = 2

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Empty(t, f.llm.prompts)
}

func TestRAGService_Query_IndexFailurePassesThrough(t *testing.T) {
	f := newFixture(t)
	f.index.searchErr = fmt.Errorf("%w: connection reset", domain.ErrVectorIndexUnavailable)

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})

	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

func TestRAGService_Query_DropsForeignScopeResults(t *testing.T) {
	logs := captureLogs(t)
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")
	f.index.extraResults = []domain.SearchResult{{
		ID:    "leak:0",
		Score: 0.99,
		Metadata: map[string]any{
			domain.DefaultScopeKey: "sales",
			domain.MetaDocumentID:  "leak",
			domain.MetaContent:     "sales secrets",
		},
	}}

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng", TopK: 10})
	require.NoError(t, err)

	for _, s := range resp.Sources {
		assert.NotEqual(t, "leak", s.DocumentID)
	}
	assert.NotContains(t, f.llm.lastPrompt(), "sales secrets")
	assert.Contains(t, logs.String(), "[WARN]")
	assert.Contains(t, logs.String(), domain.ErrScopeViolation.Error())
}

func TestRAGService_Query_NumericScope(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: 42})
	require.NoError(t, err)

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "42"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 1)
}

func TestRAGService_Query_Observers(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs, nil))
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)

	want := []domain.Stage{
		domain.StageEmbedding,
		domain.StageRetrieval,
		domain.StageContextBuild,
		domain.StagePromptBuild,
		domain.StageGeneration,
	}
	assert.Equal(t, want, obs.starts)
	require.Len(t, obs.ends, len(want))

	queryID := obs.ends[0].QueryID
	_, err = uuid.Parse(queryID)
	require.NoError(t, err)
	for i, e := range obs.ends {
		assert.Equal(t, want[i], e.Stage)
		assert.Equal(t, queryID, e.QueryID)
		assert.NoError(t, e.Err)
	}
}

func TestRAGService_Query_KeepsCallerQueryID(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs))

	ctx := domain.WithQueryID(context.Background(), "mcp-7")
	_, err := f.svc.Query(ctx, domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.NoError(t, err)
	assert.Equal(t, "mcp-7", obs.ends[0].QueryID)
}

func TestRAGService_Query_ObserverSeesFailure(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs))
	f.embedder.err = errors.New("down")

	_, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "eng"})
	require.Error(t, err)

	assert.Equal(t, []domain.Stage{domain.StageEmbedding}, obs.starts)
	require.Len(t, obs.ends, 1)
	assert.ErrorIs(t, obs.ends[0].Err, domain.ErrUpstreamUnavailable)
}

func TestRAGService_Query_Cancellation(t *testing.T) {
	t.Run("before the first stage", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.svc.Query(ctx, domain.QueryContext{Question: "alpha", ScopeID: "eng"})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, domain.KindCanceled, domain.KindOf(err))
		assert.Zero(t, f.embedder.calls)
	})

	t.Run("between stages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		obs := &cancelAfter{stage: domain.StageEmbedding, cancel: cancel}
		rec := &recordingObserver{}
		f := newFixture(t, WithObserver(obs, rec))

		_, err := f.svc.Query(ctx, domain.QueryContext{Question: "alpha", ScopeID: "eng"})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []domain.Stage{domain.StageEmbedding}, rec.starts)
		assert.Empty(t, f.llm.prompts)
	})

	t.Run("during generation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f := newFixture(t)
		f.llm.onCall = cancel

		resp, err := f.svc.Query(ctx, domain.QueryContext{Question: "alpha", ScopeID: "eng"})

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})
}

// cancelAfter cancels the query context when a stage ends.
type cancelAfter struct {
	stage  domain.Stage
	cancel context.CancelFunc
}

func (c *cancelAfter) OnStageStart(context.Context, domain.Stage) {}

func (c *cancelAfter) OnStageEnd(_ context.Context, e domain.StageEvent) {
	if e.Stage == c.stage {
		c.cancel()
	}
}

func TestRAGService_Query_HistoryInPrompt(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	_, err := f.svc.Query(context.Background(), domain.QueryContext{
		Question: "and beta?",
		ScopeID:  "eng",
		History: []domain.HistoryTurn{
			{Role: domain.RoleUser, Content: "what about alpha?"},
			{Role: domain.RoleAssistant, Content: "Alpha rules."},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, f.llm.lastPrompt(),
		"Conversation history:\nUser: what about alpha?\nAssistant: Alpha rules.")
}

func TestRAGService_Query_ChineseLocale(t *testing.T) {
	prompts := staticPrompts{"rag_preamble_zh": "自定义前言"}
	f := newFixture(t, WithSettings(domain.RAGSettings{Locale: domain.LocaleChinese}), WithPromptStore(prompts))
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	_, err := f.svc.Query(context.Background(), domain.QueryContext{
		Question: "alpha",
		ScopeID:  "eng",
		History:  []domain.HistoryTurn{{Role: domain.RoleUser, Content: "你好"}},
	})
	require.NoError(t, err)

	prompt := f.llm.lastPrompt()
	assert.Contains(t, prompt, "自定义前言")
	assert.Contains(t, prompt, "对话历史：\n用户：你好")
	assert.Contains(t, prompt, "【doc-1.txt】")
	assert.Contains(t, prompt, "用户问题：alpha")
}

func TestRAGService_IndexDocument_PointMetadata(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.IndexDocument(context.Background(), "doc-1", alphaBetaText, map[string]any{
		domain.DefaultScopeKey: "eng",
		"author":               "kim",
		domain.MetaChunkID:     "caller-value",
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	results, err := f.index.VectorIndex.Search(context.Background(), domain.VectorQuery{
		Vector: f.embedder.vector("beta"),
		Limit:  10,
		Filter: domain.ScopeFilter{domain.DefaultScopeKey: "eng"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]domain.SearchResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	second := byID["doc-1:1"]
	assert.Equal(t, "doc-1", second.MetaString(domain.MetaDocumentID))
	assert.Equal(t, "doc-1:1", second.MetaString(domain.MetaChunkID))
	assert.Equal(t, "1", second.MetaString(domain.MetaChunkIndex))
	assert.Equal(t, "Beta rules too.", second.MetaString(domain.MetaContent))
	assert.Equal(t, "kim", second.MetaString("author"))
}

func TestRAGService_IndexDocument_Validation(t *testing.T) {
	tests := []struct {
		name     string
		sourceID string
		metadata map[string]any
	}{
		{"empty source id", " ", map[string]any{domain.DefaultScopeKey: "eng"}},
		{"nil metadata", "doc", nil},
		{"missing scope", "doc", map[string]any{"filename": "x"}},
		{"empty scope", "doc", map[string]any{domain.DefaultScopeKey: ""}},
		{"nested metadata", "doc", map[string]any{domain.DefaultScopeKey: "eng", "tags": []string{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			n, err := f.svc.IndexDocument(context.Background(), tt.sourceID, "alpha", tt.metadata)
			assert.Zero(t, n)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRAGService_IndexDocument_CustomScopeKey(t *testing.T) {
	f := newFixture(t, WithScopeKey("tenant"))
	assert.Equal(t, "tenant", f.svc.ScopeKey())

	_, err := f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{"tenant": "acme"})
	require.NoError(t, err)

	resp, err := f.svc.Query(context.Background(), domain.QueryContext{Question: "alpha", ScopeID: "acme"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 1)
}

func TestRAGService_IndexDocument_BlankText(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.IndexDocument(context.Background(), "doc", "  \n\n ", map[string]any{domain.DefaultScopeKey: "eng"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.index.ensureCalls)
}

func TestRAGService_IndexDocument_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.batchErr = errors.New("timeout")

	_, err := f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestRAGService_IndexDocument_DimensionMismatch(t *testing.T) {
	f := newFixture(t)
	f.embedder.wrongDim = true

	_, err := f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, domain.KindDimensionMismatch, domain.KindOf(err))
}

func TestRAGService_IndexDocument_ReindexReplaces(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, f.index.ensureCalls)
}

func TestRAGService_IndexDocument_NotReadyRetriesOnce(t *testing.T) {
	f := newFixture(t)
	f.index.notReadyLeft = 1

	n, err := f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, f.index.ensureCalls)

	f.index.notReadyLeft = 2
	_, err = f.svc.IndexDocument(context.Background(), "doc", "alpha", map[string]any{domain.DefaultScopeKey: "eng"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestRAGService_DeleteDocument(t *testing.T) {
	f := newFixture(t)
	n := f.mustIndex(t, "doc-1", alphaBetaText, "eng")
	f.mustIndex(t, "doc-2", "gamma", "eng")

	require.NoError(t, f.svc.DeleteDocument(context.Background(), "doc-1", n))
	assert.Equal(t, [][]string{{"doc-1:0", "doc-1:1"}}, f.index.deleted)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	assert.NoError(t, f.svc.DeleteDocument(context.Background(), "doc-2", 0))
	assert.ErrorIs(t, f.svc.DeleteDocument(context.Background(), "doc-2", -1), domain.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.DeleteDocument(context.Background(), "", 1), domain.ErrInvalidInput)
}

func TestRAGService_Reset(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	require.NoError(t, f.svc.Reset(context.Background()))

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Equal(t, f.embedder.Dimensions(), stats.Dimension)

	// The collection is usable straight away.
	assert.Equal(t, 2, f.mustIndex(t, "doc-1", alphaBetaText, "eng"))
}

func TestRAGService_Stats_NotReady(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Stats(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestRAGService_Ping(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ping(context.Background()))

	f.embedder.err = errors.New("embedder down")
	f.llm.pingErr = fmt.Errorf("%w: llm down", domain.ErrLLMUnavailable)
	f.index.statsErr = fmt.Errorf("%w: index down", domain.ErrVectorIndexUnavailable)

	err := f.svc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder down")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestRAGService_DeleteChunks(t *testing.T) {
	f := newFixture(t)
	f.mustIndex(t, "doc-1", alphaBetaText, "eng")

	require.NoError(t, f.svc.DeleteChunks(context.Background(), "doc-1", 1, 3))
	assert.Equal(t, [][]string{{"doc-1:1", "doc-1:2"}}, f.index.deleted)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	assert.NoError(t, f.svc.DeleteChunks(context.Background(), "doc-1", 2, 2))
	assert.ErrorIs(t, f.svc.DeleteChunks(context.Background(), "doc-1", 3, 1), domain.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.DeleteChunks(context.Background(), "doc-1", -1, 1), domain.ErrInvalidInput)
}
