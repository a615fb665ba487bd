// Package transcript renders the chat history in a scrollable viewport.
package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Exchange is one question and its outcome.
type Exchange struct {
	Question string
	Answer   string
	Sources  []domain.Source
	Err      error
}

// Transcript holds every exchange of the session.
type Transcript struct {
	exchanges []Exchange
	pending   string
	styles    *styles.Styles
	viewport  viewport.Model
	width     int
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		styles:   s,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// Update forwards scrolling keys and mouse events to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// Ask records a question awaiting its answer.
func (t *Transcript) Ask(question string) {
	t.pending = question
	t.refresh()
}

// Append records a finished exchange and scrolls to it.
func (t *Transcript) Append(e Exchange) {
	t.pending = ""
	t.exchanges = append(t.exchanges, e)
	t.refresh()
}

// Clear removes every exchange.
func (t *Transcript) Clear() {
	t.exchanges = nil
	t.pending = ""
	t.refresh()
}

// Exchanges returns the recorded exchanges.
func (t *Transcript) Exchanges() []Exchange {
	return t.exchanges
}

// SetDimensions resizes the viewport.
func (t *Transcript) SetDimensions(width, height int) {
	t.width = width
	t.viewport.Width = width
	t.viewport.Height = max(height, 1)
	t.refresh()
}

// ScrollUp moves up half a page.
func (t *Transcript) ScrollUp() {
	t.viewport.HalfPageUp()
}

// ScrollDown moves down half a page.
func (t *Transcript) ScrollDown() {
	t.viewport.HalfPageDown()
}

// Render returns the full transcript text, independent of the viewport.
func (t *Transcript) Render() string {
	if len(t.exchanges) == 0 && t.pending == "" {
		return t.styles.Muted.Render("Ask a question about the documents in this scope.")
	}

	wrap := lipgloss.NewStyle().Width(max(t.width-2, 20))
	blocks := make([]string, 0, len(t.exchanges)+1)
	for i := range t.exchanges {
		blocks = append(blocks, t.renderExchange(&t.exchanges[i], wrap))
	}
	if t.pending != "" {
		blocks = append(blocks, t.renderQuestion(t.pending, wrap)+"\n"+t.styles.Muted.Render("..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (t *Transcript) renderQuestion(q string, wrap lipgloss.Style) string {
	return t.styles.UserLabel.Render("You: ") + wrap.Render(q)
}

func (t *Transcript) renderExchange(e *Exchange, wrap lipgloss.Style) string {
	lines := []string{t.renderQuestion(e.Question, wrap)}

	if e.Err != nil {
		lines = append(lines, t.styles.Error.Render(fmt.Sprintf("error [%s]: %v", domain.KindOf(e.Err), e.Err)))
		return strings.Join(lines, "\n")
	}

	lines = append(lines, t.styles.AssistantLabel.Render("Answer: ")+wrap.Render(e.Answer))
	for i, src := range e.Sources {
		name := src.Filename
		if name == "" {
			name = src.DocumentID
		}
		lines = append(lines, t.styles.Source.Render(fmt.Sprintf("[%d] %s (%s) ", i+1, name, src.ChunkID))+
			t.styles.Score.Render(fmt.Sprintf("%.2f", src.Score)))
	}
	return strings.Join(lines, "\n")
}

func (t *Transcript) refresh() {
	t.viewport.SetContent(t.Render())
	t.viewport.GotoBottom()
}
