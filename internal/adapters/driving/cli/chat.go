package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui"
)

var (
	chatScope string
	chatTopK  int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Starts a terminal chat over one scope. Each answer is added to the
conversation history sent with the next question, so follow-up questions
can refer back to earlier ones.

Controls:
  Enter       - Ask
  Ctrl+L      - Start a new conversation
  PgUp/PgDn   - Scroll the transcript
  Esc/Ctrl+C  - Quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatScope, "scope", "s", "", "scope to search (required)")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of chunks per question (default from config)")
	_ = chatCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{RAG: ragService}, tui.Config{Scope: chatScope, TopK: chatTopK})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
