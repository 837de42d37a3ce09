// Package config loads the typed service configuration from a TOML
// file, applying defaults for every unset option.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Search   SearchConfig   `toml:"search"`
	Embedder EmbedderConfig `toml:"embedder"`
	Vector   VectorConfig   `toml:"vector"`
	Behavior BehaviorConfig `toml:"behavior"`
	Prefix   PrefixConfig   `toml:"prefix"`
	Oracle   OracleConfig   `toml:"oracle"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Seed     SeedConfig     `toml:"seed"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig configures the listening surfaces.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `toml:"addr"`

	// EnableMCP also serves the MCP tool surface.
	EnableMCP bool `toml:"enable_mcp"`

	// MCPAddr is the MCP streamable-HTTP listen address. Empty means
	// stdio.
	MCPAddr string `toml:"mcp_addr"`
}

// SearchConfig configures hybrid blending and ranking.
type SearchConfig struct {
	// KeywordWeight is the lexical leg's share of the blended score.
	KeywordWeight float64 `toml:"keyword_weight"`

	// VectorWeight is the vector leg's share. Must sum to 1 with
	// KeywordWeight.
	VectorWeight float64 `toml:"vector_weight"`

	// PersonalizationWeight scales the user preference boost.
	PersonalizationWeight float64 `toml:"personalization_weight"`

	// LastSelectionBonus is added when the user's last selection for
	// the exact query matches a candidate.
	LastSelectionBonus float64 `toml:"last_selection_bonus"`

	// MaxSuggestions caps the result list.
	MaxSuggestions int `toml:"max_suggestions"`

	// MinScore drops candidates scoring below it.
	MinScore float64 `toml:"min_score"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Provider is one of "local", "ollama", "openai".
	Provider string `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// Dimension is the vector size. Must match the vector index.
	Dimension int `toml:"dimension"`

	// CacheSize bounds the LRU embedding cache. Zero disables it.
	CacheSize int `toml:"cache_size"`

	// MaxInputChars truncates longer inputs on a rune boundary.
	MaxInputChars int `toml:"max_input_chars"`

	// BatchSize bounds one provider batch call.
	BatchSize int `toml:"batch_size"`
}

// VectorConfig configures the vector index backend.
type VectorConfig struct {
	// Backend is "memory" or "qdrant".
	Backend string `toml:"backend"`

	// QdrantAddr is the qdrant gRPC address.
	QdrantAddr string `toml:"qdrant_addr"`

	// Collection is the qdrant collection name.
	Collection string `toml:"collection"`
}

// BehaviorConfig configures the behavior store.
type BehaviorConfig struct {
	// Enabled turns personalization and sequence learning on.
	Enabled bool `toml:"enabled"`

	// Path is the sqlite data directory. Empty selects the in-memory
	// store.
	Path string `toml:"path"`

	// HistoryCap bounds each user's history list.
	HistoryCap int `toml:"history_cap"`

	// PreferenceTTLHours expires the per-query last selection.
	PreferenceTTLHours int `toml:"preference_ttl_hours"`

	// TopPreferences bounds the preference list read for boosts.
	TopPreferences int `toml:"top_preferences"`
}

// PrefixConfig configures prefix-preserving completion.
type PrefixConfig struct {
	// Enabled turns the prefix engine on.
	Enabled bool `toml:"enabled"`

	// MinTokens is the token count that triggers the engine.
	MinTokens int `toml:"min_tokens"`

	// MinTailChars is the minimum trailing token length.
	MinTailChars int `toml:"min_tail_chars"`

	// CandidateLimit caps tail candidates fetched from the lexical
	// index.
	CandidateLimit int `toml:"candidate_limit"`

	// ResultLimit caps emitted completions.
	ResultLimit int `toml:"result_limit"`

	// MinPreserved is the completion count below which the engine
	// signals "no preserved results".
	MinPreserved int `toml:"min_preserved"`
}

// OracleConfig configures the optional semantic oracle.
type OracleConfig struct {
	// Enabled turns oracle calls on.
	Enabled bool `toml:"enabled"`

	// Provider is one of "openai", "anthropic", "ollama".
	Provider string `toml:"provider"`

	// Model is the chat model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// Temperature controls sampling randomness.
	Temperature float64 `toml:"temperature"`

	// MaxTokens bounds one completion.
	MaxTokens int `toml:"max_tokens"`

	// TimeoutMS bounds one oracle call.
	TimeoutMS int `toml:"timeout_ms"`

	// RateLimit is the maximum oracle calls per second.
	RateLimit float64 `toml:"rate_limit"`

	// MaxExpansions caps ExpandQuery results.
	MaxExpansions int `toml:"max_expansions"`

	// MaxRelated caps GenerateRelated results.
	MaxRelated int `toml:"max_related"`
}

// TimeoutConfig holds per-call budgets in milliseconds.
type TimeoutConfig struct {
	LexMS      int `toml:"lex_ms"`
	VecMS      int `toml:"vec_ms"`
	BehaviorMS int `toml:"behavior_ms"`
	EmbedMS    int `toml:"embed_ms"`
	OracleMS   int `toml:"oracle_ms"`
	TotalMS    int `toml:"total_ms"`
}

// SeedConfig configures corpus seeding at startup.
type SeedConfig struct {
	// Path is a JSONL file of documents to ingest. Empty disables
	// seeding.
	Path string `toml:"path"`

	// Watch re-ingests the file when it changes.
	Watch bool `toml:"watch"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Verbose bool `toml:"verbose"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Search: SearchConfig{
			KeywordWeight:         0.7,
			VectorWeight:          0.3,
			PersonalizationWeight: 0.2,
			LastSelectionBonus:    0.3,
			MaxSuggestions:        10,
			MinScore:              0.1,
		},
		Embedder: EmbedderConfig{
			Provider:      "local",
			Dimension:     384,
			CacheSize:     10000,
			MaxInputChars: 512,
			BatchSize:     32,
		},
		Vector: VectorConfig{
			Backend:    "memory",
			QdrantAddr: "localhost:6334",
			Collection: "querypilot",
		},
		Behavior: BehaviorConfig{
			Enabled:            true,
			HistoryCap:         100,
			PreferenceTTLHours: 720,
			TopPreferences:     20,
		},
		Prefix: PrefixConfig{
			Enabled:        true,
			MinTokens:      5,
			MinTailChars:   1,
			CandidateLimit: 20,
			ResultLimit:    10,
			MinPreserved:   1,
		},
		Oracle: OracleConfig{
			Provider:      "openai",
			Temperature:   0.3,
			MaxTokens:     256,
			TimeoutMS:     1000,
			RateLimit:     5,
			MaxExpansions: 3,
			MaxRelated:    5,
		},
		Timeouts: TimeoutConfig{
			LexMS:      200,
			VecMS:      200,
			BehaviorMS: 100,
			EmbedMS:    500,
			OracleMS:   1000,
			TotalMS:    1500,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// is not an error when path is empty; an explicitly named file must
// exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	sum := c.Search.KeywordWeight + c.Search.VectorWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("search weights must sum to 1, got %.3f", sum)
	}
	if c.Search.KeywordWeight < 0 || c.Search.VectorWeight < 0 {
		return errors.New("search weights must be non-negative")
	}
	if c.Search.MaxSuggestions < 1 {
		return errors.New("search.max_suggestions must be at least 1")
	}
	if c.Embedder.Dimension < 1 {
		return errors.New("embedder.dimension must be positive")
	}
	if c.Prefix.MinTokens < 2 {
		return errors.New("prefix.min_tokens must be at least 2")
	}
	return nil
}

// Timeout helpers convert the millisecond settings to durations.

// Lex returns the lexical leg budget.
func (t TimeoutConfig) Lex() time.Duration { return time.Duration(t.LexMS) * time.Millisecond }

// Vec returns the vector leg budget.
func (t TimeoutConfig) Vec() time.Duration { return time.Duration(t.VecMS) * time.Millisecond }

// Behavior returns the behavior store budget.
func (t TimeoutConfig) Behavior() time.Duration {
	return time.Duration(t.BehaviorMS) * time.Millisecond
}

// Embed returns the embedding budget.
func (t TimeoutConfig) Embed() time.Duration { return time.Duration(t.EmbedMS) * time.Millisecond }

// Oracle returns the oracle call budget.
func (t TimeoutConfig) Oracle() time.Duration { return time.Duration(t.OracleMS) * time.Millisecond }

// Total returns the end-to-end request budget.
func (t TimeoutConfig) Total() time.Duration { return time.Duration(t.TotalMS) * time.Millisecond }

// PreferenceTTL returns the last-selection TTL as a duration.
func (b BehaviorConfig) PreferenceTTL() time.Duration {
	return time.Duration(b.PreferenceTTLHours) * time.Hour
}
