package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	behaviormem "github.com/helixbi/querypilot/internal/adapters/driven/behavior/memory"
	localembed "github.com/helixbi/querypilot/internal/adapters/driven/embedding/local"
	"github.com/helixbi/querypilot/internal/adapters/driven/lexical/memindex"
	vectormem "github.com/helixbi/querypilot/internal/adapters/driven/vector/memory"
	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// failingVector simulates a vector backend that always times out.
type failingVector struct{}

func (failingVector) Add(_ context.Context, _ string, _ []float32) error { return nil }
func (failingVector) Delete(_ context.Context, _ string) error           { return nil }
func (failingVector) Search(_ context.Context, _ []float32, _ int) ([]driven.VectorHit, error) {
	return nil, context.DeadlineExceeded
}
func (failingVector) Count(_ context.Context) (int, error) { return 0, nil }
func (failingVector) Ping(_ context.Context) error         { return context.DeadlineExceeded }
func (failingVector) Close() error                         { return nil }

// failingEmbedder simulates an unreachable embedding provider.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embedder down")
}
func (failingEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}
func (failingEmbedder) Dimensions() int              { return 8 }
func (failingEmbedder) ModelName() string            { return "failing" }
func (failingEmbedder) Ping(_ context.Context) error { return errors.New("embedder down") }
func (failingEmbedder) Close() error                 { return nil }

// countingEngine delegates to the real index while recording Search
// calls.
type countingEngine struct {
	driven.SearchEngine
	searches atomic.Int32
}

func (e *countingEngine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	e.searches.Add(1)
	return e.SearchEngine.Search(ctx, query, limit)
}

// stubOracle returns canned replies.
type stubOracle struct {
	expansions  []string
	related     []string
	completions []driven.RankedCompletion
	err         error
}

func (o *stubOracle) ExpandQuery(_ context.Context, _ string) ([]string, error) {
	return o.expansions, o.err
}
func (o *stubOracle) GenerateRelated(_ context.Context, _ string, _ map[string]string) ([]string, error) {
	return o.related, o.err
}
func (o *stubOracle) RankPrefixCompletions(_ context.Context, _, _ string, _ []string, _ map[string]string) ([]driven.RankedCompletion, error) {
	return o.completions, o.err
}
func (o *stubOracle) Available() bool   { return true }
func (o *stubOracle) ModelName() string { return "stub" }
func (o *stubOracle) Close() error      { return nil }

// testStack bundles a fully wired service over in-memory adapters.
type testStack struct {
	engine   *memindex.Index
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	behavior driven.BehaviorStore
	oracle   driven.OracleClient
	ingest   *IngestService
	svc      *SuggestionService
}

type stackOption func(*testStack)

func withVector(v driven.VectorIndex) stackOption {
	return func(ts *testStack) { ts.vector = v }
}

func withEmbedder(e driven.EmbeddingService) stackOption {
	return func(ts *testStack) { ts.embedder = e }
}

func withOracle(o driven.OracleClient) stackOption {
	return func(ts *testStack) { ts.oracle = o }
}

func withoutBehavior() stackOption {
	return func(ts *testStack) { ts.behavior = nil }
}

func newTestStack(opts ...stackOption) *testStack {
	embedder := localembed.NewEmbeddingService(localembed.Config{Dimensions: 32})
	ts := &testStack{
		engine:   memindex.New(memindex.Config{}),
		vector:   vectormem.New(embedder.Dimensions()),
		embedder: embedder,
		behavior: behaviormem.NewStore(behaviormem.Config{}),
	}
	for _, opt := range opts {
		opt(ts)
	}

	ts.ingest = NewIngestService(ts.engine, ts.vector, ts.embedder, behaviormem.NewReconcileLog(), IngestConfig{})

	hybrid := NewHybridSearcher(ts.engine, ts.vector, HybridConfig{
		KeywordWeight: 0.7,
		VectorWeight:  0.3,
		LexTimeout:    200 * time.Millisecond,
		VecTimeout:    50 * time.Millisecond,
	})
	ranker := NewRanker(ts.behavior, RankerConfig{
		PersonalizationWeight: 0.2,
		LastSelectionBonus:    0.3,
	})
	prefix := NewPrefixCompleter(ts.engine, ts.oracle, PrefixConfig{})

	ts.svc = NewSuggestionService(hybrid, ranker, prefix, ts.ingest,
		ts.embedder, ts.oracle, ts.behavior, SuggestConfig{
			MaxSuggestions: 10,
			PrefixEnabled:  true,
		})
	return ts
}

// seedS1 indexes the three-document corpus shared by several
// scenarios.
func (ts *testStack) seedS1(ctx context.Context) error {
	docs := []struct {
		text     string
		keywords []string
	}{
		{"销售额", []string{"销售", "revenue"}},
		{"销售额趋势分析", []string{"销售", "trend"}},
		{"市场分析", []string{"market"}},
	}
	for _, d := range docs {
		if _, err := ts.ingest.Add(ctx, docInput(d.text, d.keywords...)); err != nil {
			return err
		}
	}
	return nil
}

func docInput(text string, keywords ...string) domain.DocumentInput {
	return domain.DocumentInput{Text: text, Keywords: keywords}
}
