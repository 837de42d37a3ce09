package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath = ""
		verbose = false
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, seedPath string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "querypilot.toml")
	content := `
[embedder]
provider = "local"
dimension = 32

[behavior]
enabled = true

[seed]
path = "` + seedPath + `"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeTestSeed(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.jsonl")
	content := `{"text": "销售额"}
{"text": "销售额趋势分析"}
{"text": "市场分析"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "querypilot version")
}

func TestIngestRequiresFile(t *testing.T) {
	ingestFile = ""
	_, err := execute(t, "ingest")
	assert.ErrorContains(t, err, "--file is required")
}

func TestIngestLoadsCorpus(t *testing.T) {
	cfg := writeTestConfig(t, "")
	seed := writeTestSeed(t)

	out, err := execute(t, "ingest", "--config", cfg, "--file", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 documents")
}

func TestSuggestAgainstSeededCorpus(t *testing.T) {
	seed := writeTestSeed(t)
	cfg := writeTestConfig(t, seed)

	out, err := execute(t, "suggest", "销售", "--config", cfg, "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "销售额")
}

func TestSuggestJSONOutput(t *testing.T) {
	seed := writeTestSeed(t)
	cfg := writeTestConfig(t, seed)

	out, err := execute(t, "suggest", "销售", "--config", cfg, "--json")
	require.NoError(t, err)
	t.Cleanup(func() { suggestJSON = false })
	assert.Contains(t, out, `"text"`)
}

func TestBuildEngineRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[search]
keyword_weight = 0.9
vector_weight = 0.9
`), 0o644))

	configPath = path
	t.Cleanup(func() { configPath = "" })

	_, err := buildEngine()
	assert.ErrorContains(t, err, "sum to 1")
}
