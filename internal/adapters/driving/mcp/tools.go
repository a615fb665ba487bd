package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question string               `json:"question" jsonschema:"the natural-language question"`
	ScopeID  string               `json:"scope_id" jsonschema:"the tenant or department to search within"`
	TopK     int                  `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 5)"`
	History  []domain.HistoryTurn `json:"history,omitempty" jsonschema:"prior conversation turns, oldest first"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
}

// IndexInput is the input schema for the index_document tool.
type IndexInput struct {
	SourceID string         `json:"source_id" jsonschema:"stable identifier of the document"`
	Text     string         `json:"text" jsonschema:"the raw document text"`
	ScopeID  string         `json:"scope_id" jsonschema:"the tenant or department the document belongs to"`
	Filename string         `json:"filename,omitempty" jsonschema:"label shown when the document is cited"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"extra scalar metadata copied onto every chunk"`
}

// IndexOutput is the output schema for the index_document tool.
type IndexOutput struct {
	SourceID string `json:"source_id"`
	Chunks   int    `json:"chunks"`
}

// DeleteInput is the input schema for the delete_document tool.
type DeleteInput struct {
	SourceID string `json:"source_id" jsonschema:"document or folder source ID"`
	Chunks   int    `json:"chunks,omitempty" jsonschema:"number of chunks to delete; omit to forget every synced document under the ID"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks,omitempty"`
}

// StatsInput is the (empty) input schema for the stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Collection string `json:"collection"`
	Backend    string `json:"backend"`
	Dimension  int    `json:"dimension"`
	Points     int    `json:"points"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from documents indexed in one scope, citing the chunks used",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_document",
		Description: "Chunk, embed and store a document so later queries in its scope can use it. Re-indexing a source ID replaces its chunks",
	}, s.handleIndex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document's chunks from the index",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Describe the vector collection",
	}, s.handleStats)
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	resp, err := s.ports.RAG.Query(ctx, domain.QueryContext{
		Question: input.Question,
		ScopeID:  input.ScopeID,
		History:  input.History,
		TopK:     input.TopK,
	})
	if err != nil {
		return nil, QueryOutput{}, toolError(err)
	}

	sources := resp.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return nil, QueryOutput{Answer: resp.Answer, Sources: sources}, nil
}

func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if input.ScopeID == "" {
		return nil, IndexOutput{}, toolError(fmt.Errorf("%w: scope_id is required", domain.ErrInvalidInput))
	}

	metadata := make(map[string]any, len(input.Metadata)+2)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[s.ports.scopeKey()] = input.ScopeID
	if input.Filename != "" {
		metadata[domain.MetaFilename] = input.Filename
	}

	var (
		n   int
		err error
	)
	if s.ports.Sync != nil {
		n, err = s.ports.Sync.IndexText(ctx, input.SourceID, input.Text, metadata)
	} else {
		n, err = s.ports.RAG.IndexDocument(ctx, input.SourceID, input.Text, metadata)
	}
	if err != nil {
		return nil, IndexOutput{}, toolError(err)
	}
	return nil, IndexOutput{SourceID: input.SourceID, Chunks: n}, nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if input.Chunks > 0 {
		if err := s.ports.RAG.DeleteDocument(ctx, input.SourceID, input.Chunks); err != nil {
			return nil, DeleteOutput{}, toolError(err)
		}
		return nil, DeleteOutput{Documents: 1, Chunks: input.Chunks}, nil
	}

	if s.ports.Sync == nil {
		return nil, DeleteOutput{}, toolError(fmt.Errorf("%w: chunks is required", domain.ErrInvalidInput))
	}
	n, err := s.ports.Sync.Forget(ctx, input.SourceID)
	if err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}
	return nil, DeleteOutput{Documents: n}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.RAG.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, toolError(err)
	}
	return nil, StatsOutput{
		Collection: stats.Name,
		Backend:    stats.Backend.String(),
		Dimension:  stats.Dimension,
		Points:     stats.Count,
	}, nil
}

// toolError prefixes err with its kind so clients can branch on it.
func toolError(err error) error {
	return fmt.Errorf("%s: %w", domain.KindOf(err), err)
}
