package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	statsPing bool
	resetYes  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector collection statistics",
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every indexed chunk",
	Long: `Drops the vector collection and all sync records so the corpus can be
rebuilt with 'index'. The collection is recreated on the next write.`,
	RunE: runReset,
}

func init() {
	statsCmd.Flags().BoolVar(&statsPing, "ping", false, "check the embedding, LLM and vector backends first")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := requireRAG(); err != nil {
		return err
	}
	ctx := cmd.Context()

	if statsPing {
		if err := ragService.Ping(ctx); err != nil {
			return err
		}
		cmd.Println("All backends reachable.")
	}

	stats, err := ragService.Stats(ctx)
	if errors.Is(err, domain.ErrIndexNotReady) {
		cmd.Println("Collection not created yet. Run 'sercha-rag index' first.")
		return nil
	}
	if err != nil {
		return err
	}

	cmd.Printf("Collection: %s\n", stats.Name)
	cmd.Printf("Backend:    %s\n", stats.Backend)
	cmd.Printf("Dimension:  %d\n", stats.Dimension)
	cmd.Printf("Points:     %d\n", stats.Count)
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetYes {
		return fmt.Errorf("%w: reset deletes every indexed chunk; pass --yes to confirm", domain.ErrInvalidInput)
	}

	var err error
	switch {
	case syncService != nil:
		err = syncService.Reset(cmd.Context())
	case ragService != nil:
		err = ragService.Reset(cmd.Context())
	default:
		return requireRAG()
	}
	if err != nil {
		return err
	}

	cmd.Println("Index reset.")
	return nil
}
