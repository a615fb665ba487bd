package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return the embedded
	// default or an error when no default exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. Each preamble is the fixed instruction block that
// opens every grounded-answer prompt for one locale. No format placeholders.
const (
	// PromptPreambleEnglish is the English answer preamble.
	PromptPreambleEnglish = "rag_preamble_en"

	// PromptPreambleChinese is the Simplified Chinese answer preamble.
	PromptPreambleChinese = "rag_preamble_zh"
)

// PreamblePrompt returns the prompt name holding the preamble for l.
func PreamblePrompt(l domain.Locale) string {
	if l == domain.LocaleChinese {
		return PromptPreambleChinese
	}
	return PromptPreambleEnglish
}
