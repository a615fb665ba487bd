package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

var (
	indexScope    string
	indexMeta     []string
	indexFilename string
	indexExts     []string
	indexWatch    bool
	indexResync   time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index <source-id> <file|dir>",
	Short: "Index a file or directory",
	Long: `Chunks, embeds and stores a file, or every matching file under a directory.

A file is indexed under <source-id>. Files under a directory are indexed as
<source-id>/<relative path>. Text, Markdown, HTML, DOCX and EML files are
read by default; --ext narrows the list. Unchanged files are skipped on later runs and
files that disappeared are removed from the index.

Examples:
  sercha-rag index handbook ./handbook.md --scope hr
  sercha-rag index wiki ./wiki --scope eng --meta team=platform --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexScope, "scope", "s", "", "scope the documents belong to (required)")
	indexCmd.Flags().StringArrayVarP(&indexMeta, "meta", "m", nil, "extra metadata as key=value (repeatable)")
	indexCmd.Flags().StringVar(&indexFilename, "filename", "", "label used when citing a single file")
	indexCmd.Flags().StringSliceVar(&indexExts, "ext", nil, "file extensions to index (default: every supported format)")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and index changes as they happen")
	indexCmd.Flags().DurationVar(&indexResync, "resync", 0, "also run a full sync on this interval (e.g. 1h)")
	_ = indexCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	ctx := cmd.Context()

	metadata, err := parseMeta(indexMeta)
	if err != nil {
		return err
	}
	metadata[scopeKey] = indexScope
	if indexFilename != "" {
		metadata[domain.MetaFilename] = indexFilename
	}

	src := filesystem.New(args[0], args[1],
		filesystem.WithNormalisers(normalisers.Defaults()...),
		filesystem.WithExtensions(indexExts...),
	)
	defer src.Close() //nolint:errcheck
	if err := src.Validate(ctx); err != nil {
		return err
	}

	report, err := syncService.Sync(ctx, src, metadata)
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return err
	}

	if !indexWatch && indexResync <= 0 {
		return nil
	}

	var scheduler *services.Scheduler
	if indexResync > 0 {
		scheduler = services.NewScheduler("resync "+args[0], indexResync, func(ctx context.Context) (int, error) {
			r, err := syncService.Sync(ctx, src, metadata)
			if r == nil {
				return 0, err
			}
			return r.Indexed + r.Deleted, err
		})
	}

	if !indexWatch {
		cmd.Printf("Re-syncing every %s (Ctrl+C to stop)\n", indexResync)
		return ignoreCanceled(scheduler.Start(ctx))
	}

	if scheduler != nil {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				logger.Warn("Scheduler stopped: %v", err)
			}
		}()
		defer scheduler.Stop()
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[1])
	return ignoreCanceled(syncService.Watch(ctx, src, metadata))
}

func printReport(cmd *cobra.Command, r *domain.SyncReport) {
	cmd.Printf("Indexed %d documents (%d chunks), %d unchanged, %d deleted",
		r.Indexed, r.Chunks, r.Unchanged, r.Deleted)
	if r.Failed > 0 {
		cmd.Printf(", %d failed", r.Failed)
	}
	cmd.Println()
}

// parseMeta turns key=value pairs into metadata.
func parseMeta(pairs []string) (map[string]any, error) {
	metadata := make(map[string]any, len(pairs)+2)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: metadata %q must be key=value", domain.ErrInvalidInput, pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}

// ignoreCanceled treats Ctrl+C as a clean exit for long-running commands.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
