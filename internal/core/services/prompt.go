package services

import (
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// PromptBuilder composes the grounded-answer prompt. The section order is
// fixed: preamble, history, context, question, answer cue.
type PromptBuilder struct {
	locale  domain.Locale
	text    localeText
	prompts driven.PromptStore
}

// NewPromptBuilder creates a builder. A nil prompt store uses the built-in
// preambles.
func NewPromptBuilder(locale domain.Locale, prompts driven.PromptStore) *PromptBuilder {
	if !locale.IsValid() {
		locale = domain.LocaleEnglish
	}
	return &PromptBuilder{locale: locale, text: textFor(locale), prompts: prompts}
}

// Preamble returns the role and rules block for the builder's locale.
func (b *PromptBuilder) Preamble() string {
	if b.prompts != nil {
		p, err := b.prompts.Load(driven.PreamblePrompt(b.locale))
		if err == nil && strings.TrimSpace(p) != "" {
			return p
		}
		if err != nil {
			logger.Debug("Prompt store: %v, using built-in preamble", err)
		}
	}
	return domain.DefaultPreamble(b.locale)
}

// Build joins the sections with blank lines. An empty history is omitted
// entirely rather than leaving an empty section.
func (b *PromptBuilder) Build(question, context, history string) string {
	sections := []string{b.Preamble()}
	if history != "" {
		sections = append(sections, history)
	}
	sections = append(sections,
		b.text.contextHeader+"\n"+context,
		b.text.questionLabel+question,
		b.text.answerCue,
	)
	return strings.Join(sections, "\n\n")
}
