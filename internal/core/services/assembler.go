package services

import (
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// localeText holds the fixed strings rendered into context and prompts.
type localeText struct {
	sentinel      string
	historyHeader string
	userLabel     string
	assistant     string
	labelSep      string
	openBracket   string
	closeBracket  string
	contextHeader string
	questionLabel string
	answerCue     string
}

var localeTexts = map[domain.Locale]localeText{
	domain.LocaleEnglish: {
		sentinel:      "No relevant information was found in the knowledge base.",
		historyHeader: "Conversation history:",
		userLabel:     "User",
		assistant:     "Assistant",
		labelSep:      ": ",
		openBracket:   "[",
		closeBracket:  "]",
		contextHeader: "Context:",
		questionLabel: "Question: ",
		answerCue:     "Answer:",
	},
	domain.LocaleChinese: {
		sentinel:      "知识库中没有找到相关信息",
		historyHeader: "对话历史：",
		userLabel:     "用户",
		assistant:     "助手",
		labelSep:      "：",
		openBracket:   "【",
		closeBracket:  "】",
		contextHeader: "上下文信息：",
		questionLabel: "用户问题：",
		answerCue:     "回答：",
	},
}

func textFor(l domain.Locale) localeText {
	if t, ok := localeTexts[l]; ok {
		return t
	}
	return localeTexts[domain.LocaleEnglish]
}

// ContextAssembler renders retrieved chunks and conversation history into
// prompt text. Output depends only on its inputs.
type ContextAssembler struct {
	locale domain.Locale
	text   localeText
}

// NewContextAssembler creates an assembler for a locale. Unknown locales
// render in English.
func NewContextAssembler(locale domain.Locale) *ContextAssembler {
	if !locale.IsValid() {
		locale = domain.LocaleEnglish
	}
	return &ContextAssembler{locale: locale, text: textFor(locale)}
}

// Locale returns the locale the assembler renders in.
func (a *ContextAssembler) Locale() domain.Locale {
	return a.locale
}

// NoContextSentinel is the text BuildContext returns for no results.
func (a *ContextAssembler) NoContextSentinel() string {
	return a.text.sentinel
}

// IsNoContext reports whether s is the no-results sentinel of any locale.
func IsNoContext(s string) bool {
	for _, t := range localeTexts {
		if s == t.sentinel {
			return true
		}
	}
	return false
}

// BuildContext renders one "[filename]\ncontent" block per result, in input
// order, separated by a blank line. A result without a filename is labelled
// with its document ID.
func (a *ContextAssembler) BuildContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return a.text.sentinel
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		label := r.MetaString(domain.MetaFilename)
		if label == "" {
			label = r.MetaString(domain.MetaDocumentID)
		}
		blocks = append(blocks, a.text.openBracket+label+a.text.closeBracket+"\n"+r.MetaString(domain.MetaContent))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildHistory renders a header followed by one "Label: content" line per
// turn. Any role other than user is labelled as the assistant.
func (a *ContextAssembler) BuildHistory(history []domain.HistoryTurn) string {
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history)+1)
	lines = append(lines, a.text.historyHeader)
	for _, turn := range history {
		label := a.text.assistant
		if turn.Role == domain.RoleUser {
			label = a.text.userLabel
		}
		lines = append(lines, label+a.text.labelSep+turn.Content)
	}
	return strings.Join(lines, "\n")
}
