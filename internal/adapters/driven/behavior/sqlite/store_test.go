package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	cfg.DataDir = t.TempDir()
	s, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, user, query, selected string) {
	t.Helper()
	require.NoError(t, s.RecordSelection(context.Background(), domain.Selection{
		UserID:   user,
		Query:    query,
		Selected: selected,
		At:       time.Now().UTC(),
	}))
}

func TestMigrationsRunOnce(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(Config{DataDir: dir})
	require.NoError(t, err)
	record(t, s1, "u1", "销售", "销售额")
	require.NoError(t, s1.Close())

	// Reopening must keep existing data and not re-run migrations.
	s2, err := NewStore(Config{DataDir: dir})
	require.NoError(t, err)
	defer s2.Close()

	prefs, err := s2.UserPreferences(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "销售额", prefs[0].Text)
}

func TestRecordSelectionValidates(t *testing.T) {
	s := newTestStore(t, Config{})
	err := s.RecordSelection(context.Background(), domain.Selection{UserID: "u", Query: "q"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPreferencesAreAdditive(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record(t, s, "u1", "销售", "销售额趋势分析")
	}
	record(t, s, "u1", "销售", "销售额")

	prefs, err := s.UserPreferences(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "销售额趋势分析", prefs[0].Text)
	assert.Equal(t, 3.0, prefs[0].Score)
	assert.Equal(t, 1.0, prefs[1].Score)
}

func TestLastSelectionTTL(t *testing.T) {
	s := newTestStore(t, Config{PreferenceTTL: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, s.RecordSelection(ctx, domain.Selection{
		UserID: "u1", Query: "q", Selected: "s",
		At: time.Now().UTC().Add(-time.Second),
	}))

	_, err := s.LastSelection(ctx, "u1", "q")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLastSelectionOverwrites(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	record(t, s, "u1", "销售", "销售额")
	record(t, s, "u1", "销售", "销售额趋势分析")

	last, err := s.LastSelection(ctx, "u1", "销售")
	require.NoError(t, err)
	assert.Equal(t, "销售额趋势分析", last)

	_, err = s.LastSelection(ctx, "u2", "销售")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSequenceEdges(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	record(t, s, "u2", "A", "A")
	record(t, s, "u2", "B", "B")
	record(t, s, "u2", "C", "C")

	seqA, err := s.Sequences(ctx, "A", "", 5)
	require.NoError(t, err)
	require.Len(t, seqA.Next, 1)
	assert.Equal(t, "B", seqA.Next[0].Text)

	seqC, err := s.Sequences(ctx, "C", "", 5)
	require.NoError(t, err)
	assert.Empty(t, seqC.Next)
	require.Len(t, seqC.Previous, 1)
	assert.Equal(t, "B", seqC.Previous[0].Text)
}

func TestSequenceSkipsRepeatedQuery(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	record(t, s, "u1", "A", "x")
	record(t, s, "u1", "A", "y")

	seq, err := s.Sequences(ctx, "A", "", 5)
	require.NoError(t, err)
	assert.Empty(t, seq.Next, "repeated query must not create a self edge")
}

func TestSequencesMergeUserOverGlobal(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	record(t, s, "other1", "A", "a")
	record(t, s, "other1", "B", "b")
	record(t, s, "other2", "A", "a")
	record(t, s, "other2", "B", "b")
	record(t, s, "u1", "A", "a")
	record(t, s, "u1", "C", "c")

	seq, err := s.Sequences(ctx, "A", "u1", 5)
	require.NoError(t, err)
	require.Len(t, seq.Next, 2)
	assert.Equal(t, "B", seq.Next[0].Text, "global weight 2 still outranks user weight 1")
	assert.Equal(t, "C", seq.Next[1].Text)
}

func TestHistoryCap(t *testing.T) {
	s := newTestStore(t, Config{HistoryCap: 3})
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		record(t, s, "u1", q, q)
	}

	hist, err := s.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "q4", hist[0].Query, "newest first")
	assert.Equal(t, "q2", hist[2].Query, "oldest entry evicted")
}

func TestRecentSelections(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	record(t, s, "u1", "销售", "销售额")
	record(t, s, "u1", "市场", "市场分析")
	record(t, s, "u1", "销售", "销售额趋势分析")

	recent, err := s.RecentSelections(ctx, "u1", "销售", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"销售额趋势分析", "销售额"}, recent)
}

func TestReconcileLog(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, driven.ReconcileEntry{
		DocID:      "doc-1",
		MissingLeg: "vector",
		Reason:     "embedding service unavailable",
	}))
	require.NoError(t, s.Record(ctx, driven.ReconcileEntry{
		DocID:      "doc-2",
		MissingLeg: "vector",
		Reason:     "embedding service unavailable",
	}))

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "doc-1", pending[0].DocID, "oldest first")

	require.NoError(t, s.Resolve(ctx, pending[0].ID))

	pending, err = s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "doc-2", pending[0].DocID)

	assert.ErrorIs(t, s.Resolve(ctx, 999), domain.ErrNotFound)
}
