package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// syncStateStore implements driven.SyncStateStore on the sync_state table.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

// SyncStateStore returns the sync state store sharing this database.
func (s *Store) SyncStateStore() driven.SyncStateStore {
	return &syncStateStore{store: s}
}

// Save stores or updates sync state.
func (s *syncStateStore) Save(ctx context.Context, state domain.SyncState) error {
	if state.SourceID == "" {
		return fmt.Errorf("%w: sync state needs a source ID", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_state (source_id, chunks, content_hash, last_sync)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			chunks = excluded.chunks,
			content_hash = excluded.content_hash,
			last_sync = excluded.last_sync
	`, state.SourceID, state.Chunks, state.ContentHash, state.LastSync.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Get retrieves sync state for a source ID.
func (s *syncStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, chunks, content_hash, last_sync FROM sync_state WHERE source_id = ?
	`, sourceID)

	state, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// List returns the states under prefix, ordered by source ID.
func (s *syncStateStore) List(ctx context.Context, prefix string) ([]domain.SyncState, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, chunks, content_hash, last_sync FROM sync_state
		WHERE source_id = ? OR substr(source_id, 1, length(?)) = ?
		ORDER BY source_id
	`, prefix, prefix+"/", prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("querying sync state: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState //nolint:prealloc // size unknown from query
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync state: %w", err)
	}
	return states, nil
}

// Delete removes sync state for a source ID.
func (s *syncStateStore) Delete(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_state WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting sync state: %w", err)
	}
	return nil
}

// Reset removes every entry.
func (s *syncStateStore) Reset(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_state"); err != nil {
		return fmt.Errorf("clearing sync state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row rowScanner) (*domain.SyncState, error) {
	var (
		state    domain.SyncState
		lastSync string
	)
	if err := row.Scan(&state.SourceID, &state.Chunks, &state.ContentHash, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(lastSync))
	if err != nil {
		return nil, fmt.Errorf("parsing last sync %q: %w", lastSync, err)
	}
	state.LastSync = t
	return &state, nil
}
