package domain

import (
	"context"
	"time"
)

// DefaultTopK is the number of chunks retrieved when the caller does not say.
const DefaultTopK = 5

// MaxTopK bounds the number of chunks a single query may ask for.
const MaxTopK = 1000

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryTurn is one message of prior conversation, in chronological order.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryContext is constructed per invocation and discarded afterwards.
type QueryContext struct {
	// Question is the natural-language question.
	Question string

	// ScopeID is the tenant or department the search is restricted to.
	ScopeID string

	// History is optional prior conversation.
	History []HistoryTurn

	// TopK is the number of chunks to retrieve. Zero means DefaultTopK.
	TopK int
}

// Source is the provenance of one chunk used to ground an answer.
type Source struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	ChunkID    string  `json:"chunk_id" yaml:"chunk_id"`
	Filename   string  `json:"filename" yaml:"filename"`
	Score      float64 `json:"score" yaml:"score"`
}

// RetrievalResponse is the answer plus the sources that grounded it,
// ordered by descending score.
type RetrievalResponse struct {
	Answer  string   `json:"answer" yaml:"answer"`
	Sources []Source `json:"sources" yaml:"sources"`
}

// Stage identifies a step of the query pipeline.
type Stage string

const (
	StageEmbedding    Stage = "embedding"
	StageRetrieval    Stage = "retrieval"
	StageContextBuild Stage = "context_build"
	StagePromptBuild  Stage = "prompt_build"
	StageGeneration   Stage = "generation"
)

// StageEvent describes a completed stage for observers.
type StageEvent struct {
	QueryID  string
	Stage    Stage
	Duration time.Duration
	Err      error
}

type queryIDKey struct{}

// WithQueryID attaches a query identifier to ctx.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryIDFromContext returns the query identifier, or "" if none is set.
func QueryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}
