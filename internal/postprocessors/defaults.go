package postprocessors

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewIndexingPipeline builds the pipeline IndexDocument runs: chunking
// configured from settings.
func NewIndexingPipeline(settings domain.ChunkerSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	return r.BuildPipeline([]string{"chunker"}, map[string]map[string]any{
		"chunker": {
			"size":          settings.Size,
			"overlap":       settings.Overlap,
			"max_paragraph": settings.MaxParagraph,
			"strategy":      string(settings.Strategy),
		},
	})
}

// buildChunker creates a chunker from config. Supported keys:
//   - size (int): runes per chunk (default: 500)
//   - overlap (int): overlapping runes (default: 50)
//   - max_paragraph (int): paragraph packing cap (default: 1000)
//   - strategy (string): "fixed" or "paragraph"
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}
	if maxPara := getIntFromConfig(cfg, "max_paragraph"); maxPara > 0 {
		opts = append(opts, chunker.WithMaxParagraphSize(maxPara))
	}
	if strategy, _ := cfg["strategy"].(string); strategy != "" {
		opts = append(opts, chunker.WithStrategy(domain.ChunkStrategy(strategy)))
	}

	return chunker.New(opts...)
}

// getIntFromConfig handles the int, int64 and float64 forms TOML and JSON
// decoding produce.
func getIntFromConfig(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
