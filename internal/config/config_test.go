package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.7, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.3, cfg.Search.VectorWeight)
	assert.Equal(t, 10, cfg.Search.MaxSuggestions)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, 512, cfg.Embedder.MaxInputChars)
	assert.Equal(t, 100, cfg.Behavior.HistoryCap)
	assert.Equal(t, 5, cfg.Prefix.MinTokens)
	assert.False(t, cfg.Oracle.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "querypilot.toml")
	content := `
[server]
addr = ":9090"

[search]
keyword_weight = 0.5
vector_weight = 0.5
min_score = 0.1

[behavior]
enabled = false

[timeouts]
total_ms = 2000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.5, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.1, cfg.Search.MinScore)
	assert.False(t, cfg.Behavior.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Total())

	// Untouched sections keep defaults.
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, 200*time.Millisecond, cfg.Timeouts.Lex())
}

func TestLoadRejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "querypilot.toml")
	content := `
[search]
keyword_weight = 0.9
vector_weight = 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
