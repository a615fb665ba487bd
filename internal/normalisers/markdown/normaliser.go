// Package markdown reduces Markdown to plain text. Code blocks keep their
// content; only the fences go.
package markdown

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns "markdown".
func (n *Normaliser) Name() string {
	return "markdown"
}

// Extensions returns the Markdown file extensions.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Normalise strips Markdown formatting.
func (n *Normaliser) Normalise(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not UTF-8 text", domain.ErrInvalidInput)
	}
	return stripMarkdown(strings.ReplaceAll(string(raw), "\r\n", "\n")), nil
}

var (
	inlineCode    = regexp.MustCompile("`([^`\n]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	bold          = regexp.MustCompile(`(\*\*|__)([^\n]+?)(\*\*|__)`)
	italic        = regexp.MustCompile(`(^|[\s(])[*_]([^*_\n]+)[*_]`)
	blockquote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	rule          = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	numberedList  = regexp.MustCompile(`(?m)^([ \t]*)\d+[.)][ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common Markdown syntax. Text inside code blocks is
// left untouched.
func stripMarkdown(content string) string {
	var out []string
	var prose []string
	inCode := false

	flush := func() {
		if len(prose) > 0 {
			out = append(out, stripInline(strings.Join(prose, "\n")))
			prose = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if isFence(line) {
			flush()
			inCode = !inCode
			continue
		}
		if inCode {
			out = append(out, line)
			continue
		}
		prose = append(prose, line)
	}
	flush()

	text := strings.Join(out, "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func isFence(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")
}

func stripInline(text string) string {
	text = rule.ReplaceAllString(text, "")
	text = images.ReplaceAllString(text, "$1")
	text = links.ReplaceAllString(text, "$1")
	text = headings.ReplaceAllString(text, "")
	text = blockquote.ReplaceAllString(text, "")
	text = listMarkers.ReplaceAllString(text, "$1")
	text = numberedList.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = bold.ReplaceAllString(text, "$2")
	text = italic.ReplaceAllString(text, "$1$2")
	return text
}
