package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/views/chat"
)

// Config selects what the chat session searches.
type Config struct {
	// Scope is the tenant or department every question is asked in.
	Scope string

	// TopK is the number of chunks per question. Zero uses the service default.
	TopK int
}

// App is the root tea.Model. It owns the chat view and global keys.
type App struct {
	ports  *Ports
	keymap *keymap.KeyMap
	chat   *chat.View

	width  int
	height int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application.
func NewApp(ports *Ports, cfg Config) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	if cfg.Scope == "" {
		return nil, fmt.Errorf("creating app: %w", ErrMissingScope)
	}

	km := keymap.DefaultKeyMap()
	return &App{
		ports:  ports,
		keymap: km,
		chat:   chat.NewView(styles.DefaultStyles(), km, ports.RAG, cfg.Scope, cfg.TopK),
	}, nil
}

// WithContext sets the context questions are asked under.
func (a *App) WithContext(ctx context.Context) *App {
	a.chat.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("sercha-rag chat"),
		a.chat.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}
	}

	var cmd tea.Cmd
	a.chat, cmd = a.chat.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	return a.chat.View()
}

// Chat returns the chat view.
func (a *App) Chat() *chat.View {
	return a.chat
}
