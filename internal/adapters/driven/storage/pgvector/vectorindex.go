// Package pgvector implements driven.VectorIndex on PostgreSQL with the
// pgvector extension.
//
// Each collection is its own table with a fixed-dimension vector column and
// an HNSW cosine index. The registry table rag_collections records the
// dimension so a mismatch is reported before Postgres rejects the insert.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const registryTable = "rag_collections"

// Postgres error codes mapped onto the domain taxonomy.
const (
	codeUndefinedTable = "42P01"
	codeDataException  = "22000"
)

// maxPrealloc caps the result slice capacity reserved before rows arrive.
const maxPrealloc = 64

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorIndex is safe for concurrent use.
type VectorIndex struct {
	db         *sql.DB
	collection string
	table      string

	mu        sync.RWMutex
	dimension int
}

// NewVectorIndex prepares a connection pool for dsn. No connection is made
// until the first operation.
func NewVectorIndex(dsn, collection string) (*VectorIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}
	if collection == "" {
		collection = "documents"
	}
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("%w: collection name %q must be a SQL identifier", domain.ErrInvalidInput, collection)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", domain.ErrVectorIndexUnavailable, err)
	}

	return &VectorIndex{
		db:         db,
		collection: collection,
		table:      pgx.Identifier{"rag_" + strings.ToLower(collection)}.Sanitize(),
	}, nil
}

// EnsureCollection creates the table and HNSW index, or checks the
// dimension of an existing collection.
func (v *VectorIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + registryTable + ` (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := v.db.ExecContext(ctx, stmt); err != nil {
			return classify("preparing registry", err)
		}
	}

	_, err := v.db.ExecContext(ctx,
		`INSERT INTO `+registryTable+` (name, dimension) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		v.collection, dimension)
	if err != nil {
		return classify("registering collection", err)
	}

	existing, err := v.lookupDimension(ctx)
	if err != nil {
		return err
	}
	if existing != dimension {
		return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
			domain.ErrDimensionMismatch, v.collection, existing, dimension)
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, v.table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{"rag_" + strings.ToLower(v.collection) + "_embedding_idx"}.Sanitize(), v.table),
	}
	for _, stmt := range ddl {
		if _, err := v.db.ExecContext(ctx, stmt); err != nil {
			return classify("creating collection", err)
		}
	}

	v.mu.Lock()
	v.dimension = dimension
	v.mu.Unlock()
	return nil
}

// Upsert writes the batch in one transaction.
func (v *VectorIndex) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	dim, err := v.currentDimension(ctx)
	if err != nil {
		return err
	}

	metas := make([][]byte, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has an empty id", domain.ErrInvalidInput, i)
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %q has %d dimensions, collection %q expects %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), v.collection, dim)
		}
		meta := p.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		if metas[i], err = json.Marshal(meta); err != nil {
			return fmt.Errorf("%w: point %q metadata: %w", domain.ErrInvalidInput, p.ID, err)
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2::vector, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`, v.table)
	for i, p := range points {
		if _, err := tx.ExecContext(ctx, stmt, p.ID, formatVector(p.Vector), string(metas[i])); err != nil {
			return classify("upserting point", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing upsert", err)
	}
	return nil
}

// Search runs the scoped similarity query.
func (v *VectorIndex) Search(ctx context.Context, q domain.VectorQuery) ([]domain.SearchResult, error) {
	dim, err := v.currentDimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			domain.ErrDimensionMismatch, len(q.Vector), v.collection, dim)
	}
	if q.Limit <= 0 {
		return []domain.SearchResult{}, nil
	}

	query, args := buildSearchQuery(v.table, q)
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("searching", err)
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, min(q.Limit, maxPrealloc))
	for rows.Next() {
		var (
			r        domain.SearchResult
			metaJSON []byte
		)
		if err := rows.Scan(&r.ID, &metaJSON, &r.Score); err != nil {
			return nil, classify("scanning row", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %q: %w", r.ID, err)
			}
		}
		if r.Score < q.ScoreThreshold {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating rows", err)
	}

	return vecmath.Rank(results, q.Limit), nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", v.table, strings.Join(placeholders, ","))
	if _, err := v.db.ExecContext(ctx, query, args...); err != nil {
		err = classify("deleting points", err)
		if errors.Is(err, domain.ErrIndexNotReady) {
			return nil
		}
		return err
	}
	return nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.CollectionStats, error) {
	dim, err := v.lookupDimension(ctx)
	if err != nil {
		return domain.CollectionStats{}, err
	}

	var count int
	if err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+v.table).Scan(&count); err != nil {
		return domain.CollectionStats{}, classify("counting points", err)
	}

	return domain.CollectionStats{
		Name:      v.collection,
		Dimension: dim,
		Count:     count,
		Backend:   domain.VectorBackendPgVector,
	}, nil
}

// Reset drops the collection table and its registry entry.
func (v *VectorIndex) Reset(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+v.table); err != nil {
		return classify("dropping collection", err)
	}
	_, err := v.db.ExecContext(ctx, "DELETE FROM "+registryTable+" WHERE name = $1", v.collection)
	if err != nil {
		if err = classify("unregistering collection", err); !errors.Is(err, domain.ErrIndexNotReady) {
			return err
		}
	}

	v.mu.Lock()
	v.dimension = 0
	v.mu.Unlock()
	return nil
}

// Close closes the connection pool.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

func (v *VectorIndex) currentDimension(ctx context.Context) (int, error) {
	v.mu.RLock()
	dim := v.dimension
	v.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	dim, err := v.lookupDimension(ctx)
	if err != nil {
		return 0, err
	}
	v.mu.Lock()
	v.dimension = dim
	v.mu.Unlock()
	return dim, nil
}

func (v *VectorIndex) lookupDimension(ctx context.Context) (int, error) {
	var dim int
	err := v.db.QueryRowContext(ctx,
		"SELECT dimension FROM "+registryTable+" WHERE name = $1", v.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: collection %q does not exist", domain.ErrIndexNotReady, v.collection)
	}
	if err != nil {
		return 0, classify("reading collection", err)
	}
	return dim, nil
}

// buildSearchQuery returns the ranked, scoped similarity query. Filter keys
// are sorted so the statement text is stable.
func buildSearchQuery(table string, q domain.VectorQuery) (string, []any) {
	args := []any{formatVector(q.Vector)}
	var where []string

	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k, q.Filter[k])
		where = append(where, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}

	args = append(args, q.ScoreThreshold)
	where = append(where, fmt.Sprintf("1 - (embedding <=> $1::vector) >= $%d", len(args)))

	var sb strings.Builder
	sb.WriteString("SELECT id, metadata, 1 - (embedding <=> $1::vector) AS score FROM ")
	sb.WriteString(table)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	args = append(args, q.Limit)
	// Ordering by distance alone keeps the HNSW index usable. Ties are
	// broken in Search.
	sb.WriteString(fmt.Sprintf(" ORDER BY embedding <=> $1::vector LIMIT $%d", len(args)))

	return sb.String(), args
}

// formatVector renders a vector literal such as "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// classify maps driver errors onto domain errors. Context errors are left
// unwrapped so callers see cancellation rather than an outage.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUndefinedTable:
			return fmt.Errorf("%w: %s: %w", domain.ErrIndexNotReady, op, err)
		case pgErr.Code == codeDataException && strings.Contains(pgErr.Message, "dimensions"):
			return fmt.Errorf("%w: %s: %w", domain.ErrDimensionMismatch, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrVectorIndexUnavailable, op, err)
}
