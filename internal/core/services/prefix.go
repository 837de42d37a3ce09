package services

import (
	"context"
	"math"
	"strings"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
	"github.com/helixbi/querypilot/internal/segment"
)

// PrefixConfig holds prefix-preserving completion settings.
type PrefixConfig struct {
	// MinTokens is the token count that triggers the engine.
	MinTokens int

	// MinTailChars is the minimum trailing token length in runes.
	MinTailChars int

	// CandidateLimit caps tail candidates fetched from the lexical
	// index.
	CandidateLimit int

	// ResultLimit caps emitted completions.
	ResultLimit int

	// MinPreserved is the completion count below which Complete
	// returns empty so the caller can fall back.
	MinPreserved int
}

// PrefixCompleter completes the trailing token of a long query while
// keeping the already-typed prefix verbatim. Long queries lose too
// much typed intent under whole-query retrieval; completing only the
// tail preserves it.
type PrefixCompleter struct {
	searchEngine driven.SearchEngine
	oracle       driven.OracleClient
	cfg          PrefixConfig
}

// NewPrefixCompleter creates a prefix completer. The oracle is
// optional; without it ranking falls back to lexical scores.
func NewPrefixCompleter(searchEngine driven.SearchEngine, oracle driven.OracleClient, cfg PrefixConfig) *PrefixCompleter {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = 5
	}
	if cfg.MinTailChars <= 0 {
		cfg.MinTailChars = 1
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 20
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 10
	}
	if cfg.MinPreserved <= 0 {
		cfg.MinPreserved = 1
	}
	return &PrefixCompleter{
		searchEngine: searchEngine,
		oracle:       oracle,
		cfg:          cfg,
	}
}

// Triggered reports whether the query is long enough for
// prefix-preserving completion.
func (p *PrefixCompleter) Triggered(query string) bool {
	_, tail, count := segment.SplitTail(query)
	return count >= p.cfg.MinTokens && len([]rune(tail)) >= p.cfg.MinTailChars
}

// Complete returns suggestions whose text is the original prefix plus
// a completed trailing term. Fewer than MinPreserved completions
// yields an empty slice so the orchestrator can fall back to hybrid
// retrieval.
func (p *PrefixCompleter) Complete(ctx context.Context, query string, qctx map[string]string) ([]domain.Suggestion, error) {
	prefix, tail, count := segment.SplitTail(query)
	if count < p.cfg.MinTokens || len([]rune(tail)) < p.cfg.MinTailChars {
		return nil, nil
	}

	hits, err := p.searchEngine.SearchPrefix(ctx, tail, p.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ranked, method := p.rank(ctx, prefix, tail, hits, qctx)
	if len(ranked) < p.cfg.MinPreserved {
		return nil, nil
	}
	if len(ranked) > p.cfg.ResultLimit {
		ranked = ranked[:p.cfg.ResultLimit]
	}

	out := make([]domain.Suggestion, 0, len(ranked))
	for _, rc := range ranked {
		out = append(out, domain.Suggestion{
			Text:   prefix + rc.Text,
			Score:  rc.Score,
			Source: domain.SourcePrefixPreserved,
			Metadata: map[string]any{
				"prefix":          strings.TrimRight(prefix, " "),
				"incomplete_term": tail,
				"completed_term":  rc.Text,
				"method":          method,
			},
		})
	}
	return out, nil
}

// rank orders the candidate completions, via the oracle when it is
// available and the fallback lexical scoring otherwise.
func (p *PrefixCompleter) rank(ctx context.Context, prefix, tail string, hits []driven.SearchHit, qctx map[string]string) ([]driven.RankedCompletion, string) {
	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Document.Text
	}

	if p.oracle != nil && p.oracle.Available() {
		ranked, err := p.oracle.RankPrefixCompletions(ctx, prefix, tail, texts, qctx)
		if err == nil && len(ranked) > 0 {
			return ranked, "oracle"
		}
		if err != nil {
			logger.Warn("Prefix completion: oracle ranking failed: %v", err)
			metrics.Inc(metrics.OracleFailures)
		}
		metrics.Inc(metrics.PrefixFallbacks)
	}

	var maxLex float64
	for _, hit := range hits {
		if hit.Score > maxLex {
			maxLex = hit.Score
		}
	}

	ranked := make([]driven.RankedCompletion, 0, len(hits))
	var maxScore float64
	for _, hit := range hits {
		lexNorm := 0.0
		if maxLex > 0 {
			lexNorm = hit.Score / maxLex
		}
		score := lexNorm + math.Log1p(float64(hit.Document.Frequency))/10
		if score > maxScore {
			maxScore = score
		}
		ranked = append(ranked, driven.RankedCompletion{
			Text:  hit.Document.Text,
			Score: score,
		})
	}

	// Renormalize into (0, 1] so fallback scores compare with oracle
	// scores.
	if maxScore > 0 {
		for i := range ranked {
			ranked[i].Score /= maxScore
		}
	}
	return ranked, "fallback"
}
