// Package cli implements the Parley command line interface on cobra. All
// commands share one set of services wired from the config store and the
// SQLite data directory.
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/bridge"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/custodia-labs/parley-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/services"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0"

// Shared service instances, wired once per invocation by initServices.
var (
	configStore      *file.ConfigStore
	store            *sqlite.Store
	vectors          *vectormem.Store
	factory          *ai.Factory
	knowledgeService *services.KnowledgeService
	orchestrator     *services.Orchestrator
	toolSources      []driven.ToolSource
)

var verbose bool

// initialized is set once services are wired; tests inject their own
// services and set it to bypass initServices.
var initialized bool

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Local-first conversational assistant with knowledge repositories",
	Long: `Parley is a local-first conversational assistant. Upload documents into
knowledge repositories and chat with a model that can search them, either by
inlining small corpora into the prompt or by calling a retrieval tool over
the embedded index.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return initServices(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return shutdown(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the CLI. The context cancels long-running commands (chat
// sessions, watchers, servers) on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// initServices wires stores, adapters and core services. Called once before
// any command runs.
func initServices(ctx context.Context) error {
	if initialized {
		return nil
	}
	logger.Section("init")

	var err error
	configStore, err = file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	store, err = sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	vectors = vectormem.NewStore()
	if snapshot, err := store.LoadVectorSnapshot(ctx); err != nil {
		logger.Warn("load vector snapshot: %v", err)
	} else if snapshot != nil {
		if err := vectors.Import(ctx, snapshot); err != nil {
			logger.Warn("import vector snapshot: %v", err)
		}
	}

	factory = ai.NewFactory(configStore)

	ingest := services.NewIngestService(store.RepositoryStore(), vectors, factory, services.IngestConfig{})
	knowledgeService = services.NewKnowledgeService(
		store.RepositoryStore(),
		vectors,
		factory,
		ingest,
		configStore.GetFloat(file.KeyRAGThresholdPages),
	)
	// One-shot commands want ingestion finished before the process exits.
	knowledgeService.SetSynchronous(true)

	completion, err := factory.CompletionService()
	if err != nil {
		return err
	}

	toolSources = buildToolSources(ctx)

	orchestrator = services.NewOrchestrator(
		completion,
		store.ChatStore(),
		knowledgeService,
		toolSources,
		services.OrchestratorConfig{
			Instructions:  configStore.GetString(file.KeyInstructions),
			MaxToolRounds: configStore.GetInt(file.KeyMaxToolRounds),
		},
	)

	initialized = true
	return nil
}

// buildToolSources starts the configured local and remote bridges.
func buildToolSources(ctx context.Context) []driven.ToolSource {
	var sources []driven.ToolSource

	for _, raw := range configStore.GetStringSlice(file.KeyBridgePorts) {
		port, err := strconv.Atoi(raw)
		if err != nil {
			logger.Warn("invalid bridge port %q, skipping", raw)
			continue
		}
		local := bridge.NewLocalBridge(port)
		local.Start(ctx)
		sources = append(sources, local)
	}

	for _, url := range configStore.GetStringSlice(file.KeyRemoteBridges) {
		sources = append(sources, bridge.NewRemoteBridge(url))
	}

	return sources
}

// shutdown drains background work and persists state.
func shutdown(ctx context.Context) error {
	if orchestrator != nil {
		orchestrator.Wait()
	}

	for _, source := range toolSources {
		if closer, ok := source.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Debug("close %s: %v", source.Name(), err)
			}
		}
	}

	if factory != nil {
		_ = factory.Close()
	}

	if vectors != nil && store != nil {
		snapshot, err := vectors.Export(ctx)
		if err != nil {
			logger.Warn("export vector snapshot: %v", err)
		} else if err := store.SaveVectorSnapshot(ctx, snapshot); err != nil {
			logger.Warn("save vector snapshot: %v", err)
		}
	}

	if store != nil {
		return store.Close()
	}
	return nil
}
