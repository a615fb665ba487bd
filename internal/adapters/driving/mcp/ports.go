package mcp

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// RAG answers questions and indexes documents.
	RAG driving.RAGService

	// Sync records indexed documents so re-indexing and deletion cover every
	// chunk. Optional; without it index_document writes through RAG only.
	Sync driving.SyncService

	// Settings backs the settings resource. Optional.
	Settings driving.SettingsService

	// ScopeKey is the metadata key index_document writes the scope under.
	// Empty means domain.DefaultScopeKey.
	ScopeKey string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	return nil
}

func (p *Ports) scopeKey() string {
	if p.ScopeKey == "" {
		return domain.DefaultScopeKey
	}
	return p.ScopeKey
}
