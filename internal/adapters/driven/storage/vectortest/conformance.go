// Package vectortest provides behavioural test suites that the storage
// adapters run against themselves.
package vectortest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Factory returns a fresh, empty index. The suite closes it.
type Factory func(t *testing.T) driven.VectorIndex

const scopeKey = domain.DefaultScopeKey

func point(id, scope string, vec ...float32) domain.IndexedPoint {
	return domain.IndexedPoint{
		ID:     id,
		Vector: vec,
		Metadata: map[string]any{
			scopeKey:             scope,
			domain.MetaDocumentID: "doc-" + id,
			domain.MetaChunkID:    id,
			domain.MetaContent:    "content " + id,
		},
	}
}

func scoped(scope string, limit int, vec ...float32) domain.VectorQuery {
	return domain.VectorQuery{
		Vector: vec,
		Limit:  limit,
		Filter: domain.ScopeFilter{scopeKey: scope},
	}
}

// Run executes the suite.
func Run(t *testing.T, newIndex Factory) {
	ctx := context.Background()

	open := func(t *testing.T) driven.VectorIndex {
		idx := newIndex(t)
		t.Cleanup(func() { _ = idx.Close() })
		return idx
	}

	t.Run("search before collection exists is not ready", func(t *testing.T) {
		idx := open(t)
		_, err := idx.Search(ctx, scoped("a", 5, 1, 0, 0))
		assert.ErrorIs(t, err, domain.ErrIndexNotReady)
	})

	t.Run("ensure collection is idempotent", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 3))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{point("p1", "a", 1, 0, 0)}))
		require.NoError(t, idx.EnsureCollection(ctx, 3))

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Count)
		assert.Equal(t, 3, stats.Dimension)
	})

	t.Run("ensure collection with different dimension fails", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 3))
		err := idx.EnsureCollection(ctx, 4)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("upsert with wrong dimension fails without partial writes", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 3))

		err := idx.Upsert(ctx, []domain.IndexedPoint{
			point("ok", "a", 1, 0, 0),
			point("bad", "a", 1, 0),
		})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Count)
	})

	t.Run("search with wrong dimension fails", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 3))
		_, err := idx.Search(ctx, scoped("a", 5, 1, 0))
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("results are ordered, limited and scoped", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 3))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("a-near", "a", 1, 0.1, 0),
			point("a-mid", "a", 1, 1, 0),
			point("a-far", "a", 0, 0, 1),
			point("b-exact", "b", 1, 0, 0),
		}))

		results, err := idx.Search(ctx, scoped("a", 2, 1, 0, 0))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a-near", results[0].ID)
		assert.Equal(t, "a-mid", results[1].ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		for _, r := range results {
			assert.Equal(t, "a", r.MetaString(scopeKey))
		}
		assert.Equal(t, "doc-a-near", results[0].MetaString(domain.MetaDocumentID))
		assert.Equal(t, "content a-near", results[0].MetaString(domain.MetaContent))
	})

	t.Run("scores are similarities", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{point("same", "a", 3, 4)}))

		results, err := idx.Search(ctx, scoped("a", 1, 3, 4))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	})

	t.Run("score threshold filters results", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("close", "a", 1, 0.05),
			point("orthogonal", "a", 0, 1),
		}))

		q := scoped("a", 10, 1, 0)
		q.ScoreThreshold = 0.5
		results, err := idx.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "close", results[0].ID)
		assert.GreaterOrEqual(t, results[0].Score, 0.5)
	})

	t.Run("default threshold excludes opposite vectors", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("same", "a", 1, 0),
			point("opposite", "a", -1, 0),
			point("obtuse", "a", -1, 1),
		}))

		results, err := idx.Search(ctx, scoped("a", 10, 1, 0))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "same", results[0].ID)
	})

	t.Run("huge limit is bounded by the stored points", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("x", "a", 1, 0),
			point("y", "a", 1, 1),
		}))

		results, err := idx.Search(ctx, scoped("a", 1<<40, 1, 0))
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("scope isolation holds for any query vector", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("a1", "a", 1, 0),
			point("a2", "a", 0, 1),
			point("b1", "b", 1, 0),
			point("b2", "b", 0, 1),
		}))

		for _, vec := range [][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, 0.5}} {
			results, err := idx.Search(ctx, scoped("b", 10, vec...))
			require.NoError(t, err)
			for _, r := range results {
				assert.Equal(t, "b", r.MetaString(scopeKey), "query %v leaked %s", vec, r.ID)
			}
		}

		results, err := idx.Search(ctx, scoped("missing", 10, 1, 0))
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("upsert replaces by id and is idempotent", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))

		p := point("p", "a", 1, 0)
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{p}))
		first, err := idx.Search(ctx, scoped("a", 10, 1, 0))
		require.NoError(t, err)

		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{p}))
		second, err := idx.Search(ctx, scoped("a", 10, 1, 0))
		require.NoError(t, err)

		require.Len(t, second, 1)
		assert.Equal(t, first[0].ID, second[0].ID)
		assert.InDelta(t, first[0].Score, second[0].Score, 1e-9)

		moved := point("p", "a", 0, 1)
		moved.Metadata[domain.MetaContent] = "replaced"
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{moved}))
		third, err := idx.Search(ctx, scoped("a", 10, 0, 1))
		require.NoError(t, err)
		require.Len(t, third, 1)
		assert.Equal(t, "replaced", third[0].MetaString(domain.MetaContent))

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Count)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{
			point("keep", "a", 1, 0),
			point("drop", "a", 0, 1),
		}))

		require.NoError(t, idx.Delete(ctx, []string{"drop", "never-existed"}))
		require.NoError(t, idx.Delete(ctx, []string{"drop"}))

		results, err := idx.Search(ctx, scoped("a", 10, 0, 1))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "keep", results[0].ID)
	})

	t.Run("reset drops the collection", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))
		require.NoError(t, idx.Upsert(ctx, []domain.IndexedPoint{point("p", "a", 1, 0)}))

		require.NoError(t, idx.Reset(ctx))

		_, err := idx.Search(ctx, scoped("a", 10, 1, 0))
		assert.ErrorIs(t, err, domain.ErrIndexNotReady)

		require.NoError(t, idx.EnsureCollection(ctx, 4))
		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Count)
		assert.Equal(t, 4, stats.Dimension)
	})

	t.Run("concurrent upserts and searches", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.EnsureCollection(ctx, 2))

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				scope := "a"
				if i%2 == 1 {
					scope = "b"
				}
				errs <- idx.Upsert(ctx, []domain.IndexedPoint{point(fmt.Sprintf("p%d", i), scope, 1, float32(i))})
			}(i)
			go func() {
				defer wg.Done()
				_, err := idx.Search(ctx, scoped("a", 5, 1, 1))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, stats.Count)
	})
}
