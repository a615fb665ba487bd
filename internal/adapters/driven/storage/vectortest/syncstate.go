package vectortest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// SyncStateFactory returns a fresh, empty sync state store.
type SyncStateFactory func(t *testing.T) driven.SyncStateStore

// RunSyncState exercises a driven.SyncStateStore.
func RunSyncState(t *testing.T, newStore SyncStateFactory) {
	t.Helper()
	ctx := context.Background()
	synced := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, "docs/a.md")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("save and get", func(t *testing.T) {
		store := newStore(t)
		want := domain.SyncState{SourceID: "docs/a.md", Chunks: 3, ContentHash: "abc", LastSync: synced}

		require.NoError(t, store.Save(ctx, want))

		got, err := store.Get(ctx, "docs/a.md")
		require.NoError(t, err)
		assert.Equal(t, want.SourceID, got.SourceID)
		assert.Equal(t, want.Chunks, got.Chunks)
		assert.Equal(t, want.ContentHash, got.ContentHash)
		assert.True(t, want.LastSync.Equal(got.LastSync), "last sync %v, want %v", got.LastSync, want.LastSync)
	})

	t.Run("save replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "a", Chunks: 5, ContentHash: "old", LastSync: synced}))
		require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "a", Chunks: 2, ContentHash: "new", LastSync: synced}))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Chunks)
		assert.Equal(t, "new", got.ContentHash)
	})

	t.Run("list by prefix", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"docs/b.md", "docs", "docs/a.md", "docs/sub/c.md", "docsx/d.md", "other"} {
			require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: id, Chunks: 1, LastSync: synced}))
		}

		states, err := store.List(ctx, "docs")
		require.NoError(t, err)

		ids := make([]string, len(states))
		for i, s := range states {
			ids[i] = s.SourceID
		}
		assert.Equal(t, []string{"docs", "docs/a.md", "docs/b.md", "docs/sub/c.md"}, ids)
	})

	t.Run("list by multibyte prefix", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"文档/a.md", "文档x/b.md", "docs/a.md", "文/c.md"} {
			require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: id, Chunks: 1, LastSync: synced}))
		}

		states, err := store.List(ctx, "文档")
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.Equal(t, "文档/a.md", states[0].SourceID)
	})

	t.Run("list without matches", func(t *testing.T) {
		store := newStore(t)

		states, err := store.List(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, states)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "a", Chunks: 1, LastSync: synced}))

		require.NoError(t, store.Delete(ctx, "a"))
		require.NoError(t, store.Delete(ctx, "a"))

		_, err := store.Get(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("reset", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "a", Chunks: 1, LastSync: synced}))
		require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "a/b", Chunks: 1, LastSync: synced}))

		require.NoError(t, store.Reset(ctx))

		states, err := store.List(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, states)
	})
}
