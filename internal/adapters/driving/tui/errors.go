package tui

import "errors"

// ErrMissingRAGService is returned when the retrieval service is not provided.
var ErrMissingRAGService = errors.New("tui: rag service is required")

// ErrMissingScope is returned when no scope is given for the conversation.
var ErrMissingScope = errors.New("tui: scope is required")
