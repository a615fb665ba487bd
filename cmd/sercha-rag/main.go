// Command sercha-rag indexes documents into a vector store and answers
// questions from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

var version = "dev"

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the adapters for one command from the stored settings.
func bootstrap(_ context.Context, opts cli.Options) (*cli.Services, func(), error) {
	configStore, err := openConfigStore(opts)
	if err != nil {
		return nil, nil, err
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, func() {}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("reading settings: %w", err)
	}
	if settings.Vector.Path == "" && opts.ConfigDir != "" && !opts.Ephemeral {
		settings.Vector.Path = filepath.Join(opts.ConfigDir, "data", sqlite.DefaultFilename)
	}

	logger.Section("Initialising pipeline")
	adapters, err := ai.Initialise(*settings)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range adapters.Warnings {
		logger.Warn("%s", w)
	}

	pipeline, err := postprocessors.NewIndexingPipeline(settings.Chunker)
	if err != nil {
		adapters.Close()
		return nil, nil, fmt.Errorf("chunker: %w", err)
	}

	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		adapters.Close()
		return nil, nil, fmt.Errorf("prompts: %w", err)
	}

	rag := services.NewRAGService(
		adapters.EmbeddingService,
		adapters.VectorIndex,
		adapters.LLMService,
		pipeline,
		services.WithSettings(settings.RAG),
		services.WithPromptStore(prompts),
		services.WithObserver(services.LoggingObserver{}),
	)

	states, closeStates, err := storage.NewSyncStateStore(settings.Vector)
	if err != nil {
		adapters.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := closeStates(); err != nil {
			logger.Warn("Closing sync state: %v", err)
		}
		adapters.Close()
	}

	return &cli.Services{
		RAG:      rag,
		Sync:     services.NewSyncService(rag, states, services.WithPipeline(pipelineDescription(settings))),
		Settings: settingsService,
		ScopeKey: rag.ScopeKey(),
	}, cleanup, nil
}

// pipelineDescription names the settings that shape indexed points. A
// change to any of them makes the next sync re-index every document.
func pipelineDescription(settings *domain.AppSettings) string {
	return fmt.Sprintf("%s embedding=%s/%s",
		settings.Chunker.Fingerprint(), settings.Embedding.Provider, settings.Embedding.Model)
}

// openConfigStore returns the TOML store, or for --ephemeral an in-memory
// store whose only preset is the memory vector backend. Environment
// variables still supply API keys either way.
func openConfigStore(opts cli.Options) (driven.ConfigStore, error) {
	if opts.Ephemeral {
		return memory.NewConfigStore(map[string]any{
			"vector.backend": string(domain.VectorBackendMemory),
		}), nil
	}
	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return store, nil
}
