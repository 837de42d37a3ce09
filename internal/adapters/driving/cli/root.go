// Package cli implements the querypilot command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixbi/querypilot/internal/adapters/driven/ai"
	behaviormem "github.com/helixbi/querypilot/internal/adapters/driven/behavior/memory"
	"github.com/helixbi/querypilot/internal/adapters/driven/lexical/memindex"
	"github.com/helixbi/querypilot/internal/config"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/core/services"
	"github.com/helixbi/querypilot/internal/logger"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "querypilot",
	Short: "Query assistance engine for BI chat frontends",
	Long: `querypilot suggests, completes, and relates analytics queries using
hybrid lexical and vector retrieval with per-user personalization.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if verbose {
			logger.SetVerbose(true)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to querypilot.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// engine bundles the wired services and the adapters that need
// closing at shutdown.
type engine struct {
	cfg         *config.Config
	suggestions *services.SuggestionService
	ingest      *services.IngestService
	health      *services.HealthService
	embedder    driven.EmbeddingService
	vector      driven.VectorIndex
	behavior    driven.BehaviorStore
	oracle      driven.OracleClient
}

// buildEngine wires the full service stack from the loaded config.
// The oracle is optional; a build failure there degrades instead of
// aborting.
func buildEngine() (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Logging.Verbose {
		logger.SetVerbose(true)
	}

	logger.Section("Wiring")

	searchEngine := memindex.New(memindex.Config{})

	embedder, err := ai.CreateEmbeddingService(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	vector, err := ai.CreateVectorIndex(cfg.Vector, embedder.Dimensions())
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("building vector index: %w", err)
	}

	behavior, err := ai.CreateBehaviorStore(cfg.Behavior)
	if err != nil {
		embedder.Close()
		vector.Close()
		return nil, fmt.Errorf("building behavior store: %w", err)
	}

	oracle, err := ai.CreateOracleClient(cfg.Oracle)
	if err != nil {
		logger.Warn("Oracle unavailable, continuing without it: %v", err)
		oracle = nil
	}

	reconcile := behaviorReconcileLog(behavior)

	ingest := services.NewIngestService(searchEngine, vector, embedder, reconcile,
		services.IngestConfig{
			EmbedTimeout: cfg.Timeouts.Embed(),
			BatchSize:    cfg.Embedder.BatchSize,
		})

	hybrid := services.NewHybridSearcher(searchEngine, vector, services.HybridConfig{
		KeywordWeight: cfg.Search.KeywordWeight,
		VectorWeight:  cfg.Search.VectorWeight,
		LexTimeout:    cfg.Timeouts.Lex(),
		VecTimeout:    cfg.Timeouts.Vec(),
	})

	ranker := services.NewRanker(behavior, services.RankerConfig{
		PersonalizationWeight: cfg.Search.PersonalizationWeight,
		LastSelectionBonus:    cfg.Search.LastSelectionBonus,
		TopPreferences:        cfg.Behavior.TopPreferences,
		MinScore:              cfg.Search.MinScore,
		BehaviorTimeout:       cfg.Timeouts.Behavior(),
	})

	prefix := services.NewPrefixCompleter(searchEngine, oracle, services.PrefixConfig{
		MinTokens:      cfg.Prefix.MinTokens,
		MinTailChars:   cfg.Prefix.MinTailChars,
		CandidateLimit: cfg.Prefix.CandidateLimit,
		ResultLimit:    cfg.Prefix.ResultLimit,
		MinPreserved:   cfg.Prefix.MinPreserved,
	})

	suggestions := services.NewSuggestionService(hybrid, ranker, prefix, ingest,
		embedder, oracle, behavior, services.SuggestConfig{
			MaxSuggestions:  cfg.Search.MaxSuggestions,
			MinScore:        cfg.Search.MinScore,
			PrefixEnabled:   cfg.Prefix.Enabled,
			EmbedTimeout:    cfg.Timeouts.Embed(),
			BehaviorTimeout: cfg.Timeouts.Behavior(),
			TotalTimeout:    cfg.Timeouts.Total(),
		})

	health := services.NewHealthService(searchEngine, vector, behavior)

	return &engine{
		cfg:         cfg,
		suggestions: suggestions,
		ingest:      ingest,
		health:      health,
		embedder:    embedder,
		vector:      vector,
		behavior:    behavior,
		oracle:      oracle,
	}, nil
}

// behaviorReconcileLog returns the reconcile log carried by the
// behavior store. Stores without one (memory, disabled) get an
// in-memory log so half-failed writes are still visible.
func behaviorReconcileLog(behavior driven.BehaviorStore) driven.ReconcileLog {
	if log, ok := behavior.(driven.ReconcileLog); ok {
		return log
	}
	return behaviormem.NewReconcileLog()
}

// close releases the engine's external resources.
func (e *engine) close() {
	if e.oracle != nil {
		e.oracle.Close()
	}
	if e.behavior != nil {
		e.behavior.Close()
	}
	e.vector.Close()
	e.embedder.Close()
}
