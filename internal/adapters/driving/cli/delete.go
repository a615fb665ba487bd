package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var deleteChunks int

var deleteCmd = &cobra.Command{
	Use:   "delete <source-id>",
	Short: "Remove a document from the index",
	Long: `Removes indexed chunks.

With --chunks, deletes points <source-id>:0 .. <source-id>:n-1. Without it,
deletes every document recorded by 'index' under <source-id>, including
files indexed from a directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().IntVarP(&deleteChunks, "chunks", "n", 0, "number of chunks the document was indexed with")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireRAG(); err != nil {
		return err
	}
	sourceID := args[0]

	if deleteChunks > 0 {
		if err := ragService.DeleteDocument(cmd.Context(), sourceID, deleteChunks); err != nil {
			return err
		}
		cmd.Printf("Deleted %d chunks of %s\n", deleteChunks, sourceID)
		return nil
	}

	if syncService == nil {
		return errors.New("sync service not configured; pass --chunks")
	}
	n, err := syncService.Forget(cmd.Context(), sourceID)
	if err != nil {
		return err
	}
	if n == 0 {
		cmd.Printf("Nothing indexed under %s\n", sourceID)
		return nil
	}
	cmd.Printf("Deleted %d documents under %s\n", n, sourceID)
	return nil
}
