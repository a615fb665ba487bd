// Package cli is the cobra command tree for sercha-rag.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// annotationSettingsOnly marks commands that run without the retrieval
// pipeline, so they work before a provider is configured.
const annotationSettingsOnly = "settings-only"

var version = "dev"

var (
	ragService      driving.RAGService
	syncService     driving.SyncService
	settingsService driving.SettingsService
	scopeKey        = domain.DefaultScopeKey
)

var (
	verbose   bool
	configDir string
	ephemeral bool
	bootstrap Bootstrap
	shutdown  func()
)

// Services are the driving ports the commands run against.
type Services struct {
	RAG      driving.RAGService
	Sync     driving.SyncService
	Settings driving.SettingsService

	// ScopeKey is the metadata key --scope is written under.
	ScopeKey string
}

// Options are the root flags handed to Bootstrap.
type Options struct {
	ConfigDir string
	Verbose   bool

	// Ephemeral keeps settings and the index in memory. Nothing is
	// written to disk.
	Ephemeral bool

	// SettingsOnly is set for commands that only read or write settings.
	// Bootstrap must then leave RAG and Sync nil.
	SettingsOnly bool
}

// Bootstrap builds the services for one command invocation. The returned
// cleanup func runs when Execute returns.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func(), error)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Retrieval-augmented question answering over your documents",
	Long: `sercha-rag indexes documents into a vector store and answers questions
from them, citing the chunks each answer was grounded on.

Every document is indexed under a scope (a tenant or department), and every
query searches exactly one scope.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep settings and the index in memory for this run")
}

// SetServices injects services directly, bypassing Bootstrap.
func SetServices(s *Services) {
	ragService = s.RAG
	syncService = s.Sync
	settingsService = s.Settings
	if s.ScopeKey != "" {
		scopeKey = s.ScopeKey
	}
}

// SetBootstrap registers the function that builds services once flags are
// parsed.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command. Errors are printed as
// "error [kind]: message" before being returned.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if shutdown != nil {
		shutdown()
		shutdown = nil
	}
	if err != nil {
		printError(rootCmd, err)
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil {
		return nil
	}

	services, cleanup, err := bootstrap(cmd.Context(), Options{
		ConfigDir:    configDir,
		Verbose:      verbose,
		Ephemeral:    ephemeral,
		SettingsOnly: settingsOnly(cmd),
	})
	if err != nil {
		return err
	}
	shutdown = cleanup
	SetServices(services)
	return nil
}

func settingsOnly(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationSettingsOnly] == "true" {
			return true
		}
	}
	return false
}

func printError(cmd *cobra.Command, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		kind = domain.KindInternal
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "error [%s]: %v\n", kind, err)
}

func requireRAG() error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}
	return nil
}

func requireSettings() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}
