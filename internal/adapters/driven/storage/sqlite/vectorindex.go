package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex stores one named collection in a Store.
type VectorIndex struct {
	store      *Store
	collection string
	ownsStore  bool
}

// NewVectorIndex opens the database at path and binds the named collection.
// Close releases the database.
func NewVectorIndex(path, collection string) (*VectorIndex, error) {
	store, err := NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	idx := store.VectorIndex(collection)
	idx.ownsStore = true
	return idx, nil
}

// VectorIndex binds a collection on an already open store. Closing the
// returned index leaves the store open.
func (s *Store) VectorIndex(collection string) *VectorIndex {
	if collection == "" {
		collection = "documents"
	}
	return &VectorIndex{store: s, collection: collection}
}

// EnsureCollection registers the collection, or checks the dimension of an
// existing one.
func (v *VectorIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	_, err := v.store.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		v.collection, dimension)
	if err != nil {
		return unavailable("creating collection", err)
	}

	existing, err := v.dimension(ctx, v.store.db)
	if err != nil {
		return err
	}
	if existing != dimension {
		return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
			domain.ErrDimensionMismatch, v.collection, existing, dimension)
	}
	return nil
}

// Upsert writes the batch in one transaction.
func (v *VectorIndex) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("beginning upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := v.dimension(ctx, tx)
	if err != nil {
		return err
	}

	encoded := make([]string, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has an empty id", domain.ErrInvalidInput, i)
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %q has %d dimensions, collection %q expects %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), v.collection, dim)
		}
		meta, err := marshalMetadata(p.Metadata)
		if err != nil {
			return fmt.Errorf("%w: point %q metadata: %w", domain.ErrInvalidInput, p.ID, err)
		}
		encoded[i] = meta
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, vector, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return unavailable("preparing upsert", err)
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, v.collection, p.ID, encodeVector(p.Vector), encoded[i]); err != nil {
			return unavailable("upserting point", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("committing upsert", err)
	}
	return nil
}

// Search scores the scoped rows in Go.
func (v *VectorIndex) Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	dim, err := v.dimension(ctx, v.store.db)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			domain.ErrDimensionMismatch, len(q.Vector), v.collection, dim)
	}

	query, args, err := buildSearchQuery(v.collection, q.Filter)
	if err != nil {
		return nil, err
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("searching", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			id       string
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, unavailable("scanning point", err)
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %q: %w", id, err)
		}
		if !q.Filter.Matches(meta) {
			continue
		}

		score := vecmath.Cosine(q.Vector, decodeVector(blob))
		if score < q.ScoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{ID: id, Score: score, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating points", err)
	}

	return vecmath.Rank(results, q.Limit), nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, v.collection)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM points WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return unavailable("deleting points", err)
	}
	return nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.CollectionStats, error) {
	dim, err := v.dimension(ctx, v.store.db)
	if err != nil {
		return domain.CollectionStats{}, err
	}

	var count int
	err = v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", v.collection).Scan(&count)
	if err != nil {
		return domain.CollectionStats{}, unavailable("counting points", err)
	}

	return domain.CollectionStats{
		Name:      v.collection,
		Dimension: dim,
		Count:     count,
		Backend:   domain.VectorBackendSQLite,
	}, nil
}

// Reset drops the collection and all of its points.
func (v *VectorIndex) Reset(ctx context.Context) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("beginning reset", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection = ?", v.collection); err != nil {
		return unavailable("deleting points", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", v.collection); err != nil {
		return unavailable("deleting collection", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("committing reset", err)
	}
	return nil
}

// Close closes the database if the index opened it.
func (v *VectorIndex) Close() error {
	if v.ownsStore {
		return v.store.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dimension returns ErrIndexNotReady when the collection does not exist.
func (v *VectorIndex) dimension(ctx context.Context, q queryer) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", v.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: collection %q does not exist", domain.ErrIndexNotReady, v.collection)
	}
	if err != nil {
		return 0, unavailable("reading collection", err)
	}
	return dim, nil
}

// buildSearchQuery pushes the scope filter down for string-valued metadata.
// Rows whose value has another JSON type pass through to the Go-side
// ScopeFilter.Matches check. Keys are sorted so the statement text is stable.
func buildSearchQuery(collection string, filter domain.ScopeFilter) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT id, vector, metadata FROM points WHERE collection = ?")
	args := []any{collection}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" || strings.ContainsAny(k, `"\`) {
			return "", nil, fmt.Errorf("%w: invalid filter key %q", domain.ErrInvalidInput, k)
		}
		path := `$."` + k + `"`
		sb.WriteString(" AND (json_type(metadata, ?) != 'text' OR json_extract(metadata, ?) = ?)")
		args = append(args, path, path, filter[k])
	}

	return sb.String(), args, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrVectorIndexUnavailable, op, err)
}
