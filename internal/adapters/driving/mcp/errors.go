// Package mcp exposes the retrieval pipeline as an MCP (Model Context Protocol)
// server so assistants can query and index documents through tools.
package mcp

import "errors"

// ErrMissingRAGService is returned when the retrieval service is not provided.
var ErrMissingRAGService = errors.New("mcp: rag service is required")
