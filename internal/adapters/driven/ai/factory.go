// Package ai provides factory functions that build the configured
// driven adapters: embedding service, vector index, behavior store,
// and semantic oracle.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	behaviormem "github.com/helixbi/querypilot/internal/adapters/driven/behavior/memory"
	behaviorsql "github.com/helixbi/querypilot/internal/adapters/driven/behavior/sqlite"
	"github.com/helixbi/querypilot/internal/adapters/driven/embedding/cache"
	localembed "github.com/helixbi/querypilot/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/helixbi/querypilot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/helixbi/querypilot/internal/adapters/driven/embedding/openai"
	"github.com/helixbi/querypilot/internal/adapters/driven/oracle"
	anthropicchat "github.com/helixbi/querypilot/internal/adapters/driven/oracle/anthropic"
	ollamachat "github.com/helixbi/querypilot/internal/adapters/driven/oracle/ollama"
	openaichat "github.com/helixbi/querypilot/internal/adapters/driven/oracle/openai"
	vectormem "github.com/helixbi/querypilot/internal/adapters/driven/vector/memory"
	"github.com/helixbi/querypilot/internal/adapters/driven/vector/qdrant"
	"github.com/helixbi/querypilot/internal/config"
	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService builds the configured embedding provider,
// wrapped in the LRU cache when a cache size is set.
func CreateEmbeddingService(cfg config.EmbedderConfig) (driven.EmbeddingService, error) {
	var (
		svc driven.EmbeddingService
		err error
	)

	switch cfg.Provider {
	case "", "local":
		svc = localembed.NewEmbeddingService(localembed.Config{
			Dimensions:    cfg.Dimension,
			MaxInputChars: cfg.MaxInputChars,
		})

	case "ollama":
		svc = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			Dimensions:    cfg.Dimension,
			MaxInputChars: cfg.MaxInputChars,
		})

	case "openai":
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:        apiKeyFromEnv(cfg.APIKeyEnv, "OPENAI_API_KEY"),
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			Dimensions:    cfg.Dimension,
			MaxInputChars: cfg.MaxInputChars,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		svc = cache.Wrap(svc, cfg.CacheSize)
	}
	return svc, nil
}

// CreateAndValidateEmbeddingService builds the embedder and validates
// connectivity with a bounded ping.
func CreateAndValidateEmbeddingService(cfg config.EmbedderConfig) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateVectorIndex builds the configured vector backend.
func CreateVectorIndex(cfg config.VectorConfig, dimension int) (driven.VectorIndex, error) {
	switch cfg.Backend {
	case "", "memory":
		return vectormem.New(dimension), nil

	case "qdrant":
		idx, err := qdrant.New(qdrant.Config{
			Addr:       cfg.QdrantAddr,
			Collection: cfg.Collection,
			Dimension:  dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorUnavailable, err)
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Backend)
	}
}

// CreateBehaviorStore builds the behavior store, or nil when
// personalization is disabled.
func CreateBehaviorStore(cfg config.BehaviorConfig) (driven.BehaviorStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.Path == "" {
		return behaviormem.NewStore(behaviormem.Config{
			HistoryCap:    cfg.HistoryCap,
			PreferenceTTL: cfg.PreferenceTTL(),
		}), nil
	}

	store, err := behaviorsql.NewStore(behaviorsql.Config{
		DataDir:       cfg.Path,
		HistoryCap:    cfg.HistoryCap,
		PreferenceTTL: cfg.PreferenceTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBehaviorUnavailable, err)
	}
	return store, nil
}

// CreateOracleClient builds the semantic oracle, or nil when disabled.
func CreateOracleClient(cfg config.OracleConfig) (driven.OracleClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		chatter oracle.Chatter
		err     error
	)

	switch cfg.Provider {
	case "openai":
		chatter, err = openaichat.NewChatter(openaichat.Config{
			APIKey:      apiKeyFromEnv(cfg.APIKeyEnv, "OPENAI_API_KEY"),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})

	case "anthropic":
		chatter, err = anthropicchat.NewChatter(anthropicchat.Config{
			APIKey:      apiKeyFromEnv(cfg.APIKeyEnv, "ANTHROPIC_API_KEY"),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})

	case "ollama":
		chatter = ollamachat.NewChatter(ollamachat.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})

	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}

	return oracle.NewClient(chatter, oracle.Config{
		Timeout:       time.Duration(cfg.TimeoutMS) * time.Millisecond,
		MaxExpansions: cfg.MaxExpansions,
		MaxRelated:    cfg.MaxRelated,
		RatePerSec:    cfg.RateLimit,
	}), nil
}

// apiKeyFromEnv reads the named environment variable, falling back to
// the provider's conventional name.
func apiKeyFromEnv(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	return os.Getenv(name)
}
