// Package messages defines Bubbletea message types for the chat TUI.
package messages

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AnswerReceived carries the result of one Query back to the model.
type AnswerReceived struct {
	Question string
	Response *domain.RetrievalResponse
	Err      error
}

// ConversationCleared signals the history was reset.
type ConversationCleared struct{}
