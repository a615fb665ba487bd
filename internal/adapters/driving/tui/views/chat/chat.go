// Package chat provides the multi-turn question view.
package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// chromeHeight is the number of lines used by the header, input and status bar.
const chromeHeight = 7

// View is the chat screen: a transcript above a question input.
// Each answered question adds a user and an assistant turn to the history
// sent with the next question.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.QuestionInput
	transcript *transcript.Transcript
	statusbar  *status.Bar

	rag   driving.RAGService
	scope string
	topK  int
	ctx   context.Context

	history []domain.HistoryTurn
	busy    bool

	width  int
	height int
	ready  bool
}

// NewView creates a chat view for one scope.
func NewView(s *styles.Styles, km *keymap.KeyMap, rag driving.RAGService, scope string, topK int) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		transcript: transcript.New(s),
		statusbar:  status.NewBar(s, km, scope),
		rag:        rag,
		scope:      scope,
		topK:       topK,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
}

// WithContext sets the context queries run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, v.input.Focus()

	case messages.ConversationCleared:
		v.history = nil
		v.transcript.Clear()
		v.statusbar.Clear()
		v.statusbar.SetTurns(0)
		return v, nil
	}

	var cmd tea.Cmd
	v.transcript, cmd = v.transcript.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.ScrollUp):
		v.transcript.ScrollUp()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.transcript.ScrollDown()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Clear):
		if v.busy {
			return v, nil
		}
		return v, func() tea.Msg { return messages.ConversationCleared{} }
	case keymap.Matches(keyStr, v.keymap.Send):
		return v, v.submit()
	}

	if v.busy {
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit sends the input as a question. Nothing happens while a question
// is in flight or when the input is blank.
func (v *View) submit() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if v.busy || question == "" {
		return nil
	}

	v.busy = true
	v.input.Reset()
	v.input.Blur()
	v.transcript.Ask(question)
	v.statusbar.SetState(status.StateThinking)

	return v.ask(question)
}

// ask runs Query off the update loop. History is copied so later turns do
// not race with the request.
func (v *View) ask(question string) tea.Cmd {
	q := domain.QueryContext{
		Question: question,
		ScopeID:  v.scope,
		History:  append([]domain.HistoryTurn(nil), v.history...),
		TopK:     v.topK,
	}
	rag := v.rag
	ctx := v.ctx

	return func() tea.Msg {
		resp, err := rag.Query(ctx, q)
		return messages.AnswerReceived{Question: question, Response: resp, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.busy = false

	if msg.Err != nil {
		v.transcript.Append(transcript.Exchange{Question: msg.Question, Err: msg.Err})
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(string(domain.KindOf(msg.Err)))
		return
	}

	answer := ""
	var sources []domain.Source
	if msg.Response != nil {
		answer = msg.Response.Answer
		sources = msg.Response.Sources
	}

	v.history = append(v.history,
		domain.HistoryTurn{Role: domain.RoleUser, Content: msg.Question},
		domain.HistoryTurn{Role: domain.RoleAssistant, Content: answer},
	)
	v.transcript.Append(transcript.Exchange{Question: msg.Question, Answer: answer, Sources: sources})
	v.statusbar.Clear()
	v.statusbar.SetTurns(len(v.history))
}

// View renders the chat screen.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("sercha-rag chat"),
		"",
		v.transcript.View(),
		"",
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.transcript.SetDimensions(width, height-chromeHeight)
	v.statusbar.SetWidth(width)
}

// History returns the turns that will accompany the next question.
func (v *View) History() []domain.HistoryTurn {
	return v.history
}

// Busy reports whether a question is in flight.
func (v *View) Busy() bool {
	return v.busy
}

// Ready returns whether the view has been sized.
func (v *View) Ready() bool {
	return v.ready
}

// Transcript returns the transcript component.
func (v *View) Transcript() *transcript.Transcript {
	return v.transcript
}

// StatusBar returns the status bar component.
func (v *View) StatusBar() *status.Bar {
	return v.statusbar
}

// SetInput sets the question input value.
func (v *View) SetInput(value string) {
	v.input.SetValue(value)
}
