package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer and sources", func(t *testing.T) {
		rag := &mockRAGService{response: &domain.RetrievalResponse{
			Answer: "Paris",
			Sources: []domain.Source{
				{DocumentID: "geo", ChunkID: "geo:0", Filename: "geo.md", Score: 0.91},
			},
		}}
		server := newTestServer(t, &Ports{RAG: rag})

		_, out, err := server.handleQuery(ctx, nil, QueryInput{
			Question: "capital of France?",
			ScopeID:  "d1",
			TopK:     3,
			History:  []domain.HistoryTurn{{Role: domain.RoleUser, Content: "hi"}},
		})

		require.NoError(t, err)
		assert.Equal(t, "Paris", out.Answer)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "geo:0", out.Sources[0].ChunkID)
		assert.Equal(t, "d1", rag.lastQuery.ScopeID)
		assert.Equal(t, 3, rag.lastQuery.TopK)
		assert.Len(t, rag.lastQuery.History, 1)
	})

	t.Run("nil sources become empty list", func(t *testing.T) {
		rag := &mockRAGService{response: &domain.RetrievalResponse{Answer: "none"}}
		server := newTestServer(t, &Ports{RAG: rag})

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Question: "q", ScopeID: "d1"})
		require.NoError(t, err)
		assert.NotNil(t, out.Sources)
		assert.Empty(t, out.Sources)
	})

	t.Run("error carries kind", func(t *testing.T) {
		rag := &mockRAGService{err: fmt.Errorf("%w: embed", domain.ErrUpstreamUnavailable)}
		server := newTestServer(t, &Ports{RAG: rag})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Question: "q", ScopeID: "d1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
		assert.Contains(t, err.Error(), "upstream_unavailable")
	})
}

func TestServer_handleIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("writes scope and filename into metadata", func(t *testing.T) {
		rag := &mockRAGService{chunks: 4}
		server := newTestServer(t, &Ports{RAG: rag, ScopeKey: "tenant"})

		_, out, err := server.handleIndex(ctx, nil, IndexInput{
			SourceID: "handbook",
			Text:     "some text",
			ScopeID:  "t1",
			Filename: "handbook.md",
			Metadata: map[string]any{"author": "ops", "tenant": "spoofed"},
		})

		require.NoError(t, err)
		assert.Equal(t, 4, out.Chunks)
		assert.Equal(t, "handbook", out.SourceID)
		assert.Equal(t, "t1", rag.lastMetadata["tenant"])
		assert.Equal(t, "handbook.md", rag.lastMetadata[domain.MetaFilename])
		assert.Equal(t, "ops", rag.lastMetadata["author"])
	})

	t.Run("scope is required", func(t *testing.T) {
		rag := &mockRAGService{}
		server := newTestServer(t, &Ports{RAG: rag})

		_, _, err := server.handleIndex(ctx, nil, IndexInput{SourceID: "a", Text: "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, rag.lastSourceID)
	})

	t.Run("records through the sync service when present", func(t *testing.T) {
		rag := &mockRAGService{}
		sync := &mockSyncService{chunks: 2}
		server := newTestServer(t, &Ports{RAG: rag, Sync: sync})

		_, out, err := server.handleIndex(ctx, nil, IndexInput{SourceID: "notes/a", Text: "b", ScopeID: "d1"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Chunks)
		assert.Equal(t, "notes/a", sync.lastSourceID)
		assert.Equal(t, "d1", sync.lastMetadata[domain.DefaultScopeKey])
		assert.Empty(t, rag.lastSourceID)
	})

	t.Run("service error is returned", func(t *testing.T) {
		rag := &mockRAGService{err: fmt.Errorf("%w: 3 != 4", domain.ErrDimensionMismatch)}
		server := newTestServer(t, &Ports{RAG: rag})

		_, _, err := server.handleIndex(ctx, nil, IndexInput{SourceID: "a", Text: "b", ScopeID: "d1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension_mismatch")
	})
}

func TestServer_IndexThenShrinkThenForget(t *testing.T) {
	ctx := context.Background()
	rag := &mockRAGService{chunks: 3}
	sync := services.NewSyncService(rag, memory.NewSyncStateStore())
	server := newTestServer(t, &Ports{RAG: rag, Sync: sync})

	_, out, err := server.handleIndex(ctx, nil, IndexInput{SourceID: "notes/a", Text: "long version", ScopeID: "d1"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Chunks)

	rag.chunks = 1
	_, out, err = server.handleIndex(ctx, nil, IndexInput{SourceID: "notes/a", Text: "short", ScopeID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Chunks)
	assert.Equal(t, [2]int{1, 3}, rag.lastRange)

	_, del, err := server.handleDelete(ctx, nil, DeleteInput{SourceID: "notes/a"})
	require.NoError(t, err)
	assert.Equal(t, 1, del.Documents)
	assert.Equal(t, "notes/a", rag.lastSourceID)
	assert.Equal(t, 1, rag.lastDeleted)

	_, del, err = server.handleDelete(ctx, nil, DeleteInput{SourceID: "notes"})
	require.NoError(t, err)
	assert.Zero(t, del.Documents)
}

func TestServer_handleDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes by chunk count", func(t *testing.T) {
		rag := &mockRAGService{}
		server := newTestServer(t, &Ports{RAG: rag})

		_, out, err := server.handleDelete(ctx, nil, DeleteInput{SourceID: "doc", Chunks: 3})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Documents)
		assert.Equal(t, 3, rag.lastDeleted)
	})

	t.Run("forgets synced documents without a count", func(t *testing.T) {
		sync := &mockSyncService{forgotten: 7}
		server := newTestServer(t, &Ports{RAG: &mockRAGService{}, Sync: sync})

		_, out, err := server.handleDelete(ctx, nil, DeleteInput{SourceID: "notes"})
		require.NoError(t, err)
		assert.Equal(t, 7, out.Documents)
		assert.Equal(t, "notes", sync.lastPrefix)
	})

	t.Run("count required without sync service", func(t *testing.T) {
		server := newTestServer(t, &Ports{RAG: &mockRAGService{}})

		_, _, err := server.handleDelete(ctx, nil, DeleteInput{SourceID: "notes"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("forget error is returned", func(t *testing.T) {
		sync := &mockSyncService{err: errors.New("disk full")}
		server := newTestServer(t, &Ports{RAG: &mockRAGService{}, Sync: sync})

		_, _, err := server.handleDelete(ctx, nil, DeleteInput{SourceID: "notes"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()

	t.Run("returns collection stats", func(t *testing.T) {
		rag := &mockRAGService{stats: domain.CollectionStats{
			Name:      "documents",
			Dimension: 1536,
			Count:     42,
			Backend:   domain.VectorBackendSQLite,
		}}
		server := newTestServer(t, &Ports{RAG: rag})

		_, out, err := server.handleStats(ctx, nil, StatsInput{})
		require.NoError(t, err)
		assert.Equal(t, "documents", out.Collection)
		assert.Equal(t, "sqlite", out.Backend)
		assert.Equal(t, 1536, out.Dimension)
		assert.Equal(t, 42, out.Points)
	})

	t.Run("not ready is surfaced", func(t *testing.T) {
		rag := &mockRAGService{err: domain.ErrIndexNotReady}
		server := newTestServer(t, &Ports{RAG: rag})

		_, _, err := server.handleStats(ctx, nil, StatsInput{})
		assert.ErrorIs(t, err, domain.ErrIndexNotReady)
	})
}
