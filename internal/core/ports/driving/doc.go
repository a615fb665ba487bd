// Package driving holds the ports the CLI, the MCP server and the chat TUI
// call into: RAGService for querying and indexing, SyncService for keeping
// a document source in step with the index, and SettingsService.
//
// internal/core/services implements all three.
package driving
