package seedfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/adapters/driven/lexical/memindex"
	"github.com/helixbi/querypilot/internal/core/services"
)

func writeSeed(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "seed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newIngest() (*services.IngestService, *memindex.Index) {
	engine := memindex.New(memindex.Config{})
	return services.NewIngestService(engine, nil, nil, nil, services.IngestConfig{}), engine
}

func docCount(t *testing.T, engine *memindex.Index) int {
	t.Helper()
	n, err := engine.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestParse(t *testing.T) {
	path := writeSeed(t, t.TempDir(), `{"text": "销售额趋势分析", "keywords": ["销售额"]}

{"text": "市场分析", "metadata": {"domain": "retail"}}
`)

	inputs, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "销售额趋势分析", inputs[0].Text)
	assert.Equal(t, []string{"销售额"}, inputs[0].Keywords)
	assert.Equal(t, "retail", inputs[1].Metadata["domain"])
}

func TestParseMalformedLine(t *testing.T) {
	path := writeSeed(t, t.TempDir(), `{"text": "ok"}
{not json}
`)

	_, err := Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := writeSeed(t, t.TempDir(), `{"text": "销售额"}
{"text": ""}
{"text": "市场分析"}
`)
	ingest, engine := newIngest()

	result, err := Load(context.Background(), ingest, path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 2, docCount(t, engine))
}

func TestLoadIsIdempotent(t *testing.T) {
	path := writeSeed(t, t.TempDir(), `{"text": "销售额"}
`)
	ingest, engine := newIngest()

	ctx := context.Background()
	_, err := Load(ctx, ingest, path)
	require.NoError(t, err)
	_, err = Load(ctx, ingest, path)
	require.NoError(t, err)
	assert.Equal(t, 1, docCount(t, engine))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, `{"text": "销售额"}
`)
	ingest, engine := newIngest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ingest, path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	w.Start(ctx)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"text": "销售额"}
{"text": "市场分析"}
`), 0o644))

	require.Eventually(t, func() bool {
		n, err := engine.Count(ctx)
		return err == nil && n == 2
	}, 3*time.Second, 25*time.Millisecond)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, `{"text": "销售额"}
`)
	ingest, engine := newIngest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ingest, path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	w.Start(ctx)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.jsonl"),
		[]byte(`{"text": "市场分析"}`), 0o644))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, docCount(t, engine))
}
