package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	response *domain.RetrievalResponse
	chunks   int
	stats    domain.CollectionStats
	err      error

	lastQuery    domain.QueryContext
	lastSourceID string
	lastText     string
	lastMetadata map[string]any
	lastDeleted  int
	lastRange    [2]int
}

func (m *mockRAGService) Query(_ context.Context, q domain.QueryContext) (*domain.RetrievalResponse, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockRAGService) IndexDocument(_ context.Context, sourceID, rawText string, metadata map[string]any) (int, error) {
	m.lastSourceID = sourceID
	m.lastText = rawText
	m.lastMetadata = metadata
	return m.chunks, m.err
}

func (m *mockRAGService) DeleteDocument(_ context.Context, sourceID string, chunkCount int) error {
	m.lastSourceID = sourceID
	m.lastDeleted = chunkCount
	return m.err
}

func (m *mockRAGService) DeleteChunks(_ context.Context, sourceID string, from, to int) error {
	m.lastSourceID = sourceID
	m.lastRange = [2]int{from, to}
	return m.err
}

func (m *mockRAGService) Stats(_ context.Context) (domain.CollectionStats, error) {
	return m.stats, m.err
}

func (m *mockRAGService) Reset(_ context.Context) error { return m.err }

func (m *mockRAGService) Ping(_ context.Context) error { return m.err }

// mockSyncService is a mock implementation of driving.SyncService.
type mockSyncService struct {
	forgotten  int
	chunks     int
	err        error
	lastPrefix string

	lastSourceID string
	lastMetadata map[string]any
}

func (m *mockSyncService) Sync(
	_ context.Context,
	_ driven.DocumentSource,
	_ map[string]any,
) (*domain.SyncReport, error) {
	return &domain.SyncReport{}, m.err
}

func (m *mockSyncService) Watch(_ context.Context, _ driven.DocumentSource, _ map[string]any) error {
	return m.err
}

func (m *mockSyncService) IndexText(
	_ context.Context, sourceID, _ string, metadata map[string]any,
) (int, error) {
	m.lastSourceID = sourceID
	m.lastMetadata = metadata
	return m.chunks, m.err
}

func (m *mockSyncService) Forget(_ context.Context, prefix string) (int, error) {
	m.lastPrefix = prefix
	return m.forgotten, m.err
}

func (m *mockSyncService) Reset(_ context.Context) error { return m.err }

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	display map[string]string
	err     error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, m.err
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) Set(_, _ string) error { return m.err }

func (m *mockSettingsService) Display() (map[string]string, error) { return m.display, m.err }

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) CheckConnectivity() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
