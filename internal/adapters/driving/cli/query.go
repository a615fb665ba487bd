package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	queryScope  string
	queryTopK   int
	queryOutput string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from indexed documents",
	Long: `Retrieves the chunks most similar to the question within one scope and
asks the configured LLM to answer from them. The chunks used are listed
as sources under the answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryScope, "scope", "s", "", "scope to search (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "text", "output format: text, json or yaml")
	_ = queryCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := requireRAG(); err != nil {
		return err
	}

	switch queryOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidInput, queryOutput)
	}

	resp, err := ragService.Query(cmd.Context(), domain.QueryContext{
		Question: args[0],
		ScopeID:  queryScope,
		TopK:     queryTopK,
	})
	if err != nil {
		return err
	}

	switch queryOutput {
	case "json":
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Print(string(data))
	default:
		printAnswer(cmd, resp)
	}
	return nil
}

func printAnswer(cmd *cobra.Command, resp *domain.RetrievalResponse) {
	cmd.Println(resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}

	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range resp.Sources {
		name := src.Filename
		if name == "" {
			name = src.DocumentID
		}
		cmd.Printf("  [%d] %s (%s, %.2f)\n", i+1, name, src.ChunkID, src.Score)
	}
}
