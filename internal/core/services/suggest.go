package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/core/ports/driving"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
)

// Ensure SuggestionService implements the interface.
var _ driving.SuggestionService = (*SuggestionService)(nil)

// originalBoost multiplies results for the literal query so oracle
// paraphrase results cannot outrank them.
const originalBoost = 1.1

// Related-source score bands. Each source contributes within its band
// so the union interleaves predictably before dedup.
const (
	relatedOracleBase  = 0.95
	relatedOracleStep  = 0.05
	relatedSeqNextBand = 0.85
	relatedHybridClip  = 0.80
	relatedSeqPrevBand = 0.75
	relatedHistory     = 0.70
)

// SuggestConfig holds orchestration settings.
type SuggestConfig struct {
	// MaxSuggestions caps the result list when the request does not
	// set a limit.
	MaxSuggestions int

	// MinScore is the default score floor.
	MinScore float64

	// PrefixEnabled turns prefix-preserving completion on.
	PrefixEnabled bool

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration

	// BehaviorTimeout bounds behavior store reads.
	BehaviorTimeout time.Duration

	// TotalTimeout bounds one request end to end.
	TotalTimeout time.Duration
}

// SuggestionService orchestrates the retrieval pipeline: prefix
// completion for long queries, otherwise hybrid retrieval over the
// original query plus oracle expansions, personalized by the ranker.
type SuggestionService struct {
	hybrid   *HybridSearcher
	ranker   *Ranker
	prefix   *PrefixCompleter
	ingest   *IngestService
	embedder driven.EmbeddingService
	oracle   driven.OracleClient
	behavior driven.BehaviorStore
	cfg      SuggestConfig
}

// NewSuggestionService creates the orchestrator. Embedder, oracle,
// and behavior store are optional; each absence degrades one signal.
func NewSuggestionService(
	hybrid *HybridSearcher,
	ranker *Ranker,
	prefix *PrefixCompleter,
	ingest *IngestService,
	embedder driven.EmbeddingService,
	oracle driven.OracleClient,
	behavior driven.BehaviorStore,
	cfg SuggestConfig,
) *SuggestionService {
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 10
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 500 * time.Millisecond
	}
	if cfg.BehaviorTimeout <= 0 {
		cfg.BehaviorTimeout = 100 * time.Millisecond
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 1500 * time.Millisecond
	}
	return &SuggestionService{
		hybrid:   hybrid,
		ranker:   ranker,
		prefix:   prefix,
		ingest:   ingest,
		embedder: embedder,
		oracle:   oracle,
		behavior: behavior,
		cfg:      cfg,
	}
}

// Suggest returns completions for a partially typed query.
func (s *SuggestionService) Suggest(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	metrics.Inc(metrics.RequestsSuggest)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	limit := s.limit(opts)
	logger.Debug("Suggest: query=%q user=%q limit=%d", query, opts.UserID, limit)

	if s.cfg.PrefixEnabled && s.prefix != nil && s.prefix.Triggered(query) {
		completions, err := s.prefix.Complete(ctx, query, opts.Context)
		if err != nil {
			logger.Warn("Suggest: prefix completion failed, falling back to hybrid: %v", err)
		} else if len(completions) > 0 {
			if len(completions) > limit {
				completions = completions[:limit]
			}
			logger.Debug("Suggest: %d prefix-preserved completions", len(completions))
			return completions, nil
		}
	}

	// The embedding and the oracle expansion are independent network
	// calls; overlap them.
	embedCh := s.embedAsync(ctx, query)
	expandCh := s.expandAsync(ctx, query)
	embedding := <-embedCh
	expansions := <-expandCh

	candidates, err := s.hybrid.Search(ctx, query, embedding, limit)
	if err != nil {
		return nil, err
	}

	merged := s.mergeExpansions(ctx, candidates, expansions, embedding, limit)

	ranked := s.ranker.Rank(ctx, merged, query, opts.UserID, limit, s.minScore(opts))
	return candidatesToSuggestions(ranked), nil
}

// Similar returns semantically similar queries via the vector leg
// alone.
func (s *SuggestionService) Similar(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	metrics.Inc(metrics.RequestsSimilar)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	limit := s.limit(opts)

	embedding := <-s.embedAsync(ctx, query)
	if embedding == nil {
		return nil, fmt.Errorf("similar queries need the vector leg: %w", domain.ErrEmbeddingUnavailable)
	}

	candidates, err := s.hybrid.SearchVectorOnly(ctx, query, embedding, limit+1)
	if err != nil {
		return nil, err
	}

	// The query itself is usually its own nearest neighbour.
	key := domain.DedupKey(query)
	filtered := candidates[:0]
	for _, cand := range candidates {
		if domain.DedupKey(cand.Text) != key {
			filtered = append(filtered, cand)
		}
	}

	ranked := s.ranker.Rank(ctx, filtered, query, opts.UserID, limit, s.minScore(opts))
	return candidatesToSuggestions(ranked), nil
}

// Related returns contextually related queries blended from the
// oracle, sequence edges, hybrid retrieval, and the user's own prior
// selections.
func (s *SuggestionService) Related(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	metrics.Inc(metrics.RequestsRelated)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	limit := s.limit(opts)

	var pool []domain.Suggestion
	pool = append(pool, s.relatedFromOracle(ctx, query, opts.Context)...)

	seq := s.sequences(ctx, query, opts.UserID, limit)
	pool = append(pool, scoredBand(seq.Next, relatedSeqNextBand, domain.SourceSequenceNext)...)
	pool = append(pool, scoredBand(seq.Previous, relatedSeqPrevBand, domain.SourceSequencePrev)...)

	pool = append(pool, s.relatedFromHybrid(ctx, query, limit)...)
	pool = append(pool, s.relatedFromHistory(ctx, query, opts.UserID, limit)...)

	out := dedupSuggestions(pool, query)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordFeedback records a user's selection and bumps the selected
// document's frequency. Behavior store errors are swallowed; only an
// invalid event fails.
func (s *SuggestionService) RecordFeedback(ctx context.Context, sel domain.Selection) error {
	metrics.Inc(metrics.RequestsFeedback)

	if sel.UserID == "" || strings.TrimSpace(sel.Query) == "" || strings.TrimSpace(sel.Selected) == "" {
		return fmt.Errorf("feedback needs user_id, query, and selected: %w", domain.ErrInvalidInput)
	}
	if sel.At.IsZero() {
		sel.At = time.Now().UTC()
	}

	if s.behavior != nil {
		bctx, cancel := context.WithTimeout(ctx, s.cfg.BehaviorTimeout)
		err := s.behavior.RecordSelection(bctx, sel)
		cancel()
		if err != nil {
			logger.Warn("Feedback: behavior record failed: %v", err)
			metrics.Inc(metrics.BehaviorFailures)
		}
	}

	if s.ingest != nil {
		if err := s.ingest.IncrementFrequencyByText(ctx, sel.Selected, 1); err != nil {
			logger.Warn("Feedback: frequency bump failed: %v", err)
			metrics.Inc(metrics.SwallowedErrors)
		}
	}

	return nil
}

// embedAsync embeds the query in the background. A nil result means
// the vector leg is skipped for this request.
func (s *SuggestionService) embedAsync(ctx context.Context, query string) <-chan []float32 {
	ch := make(chan []float32, 1)
	if s.embedder == nil {
		ch <- nil
		return ch
	}
	go func() {
		ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
		embedding, err := s.embedder.Embed(ectx, query)
		if err != nil {
			logger.Warn("Suggest: query embedding failed, keyword-only: %v", err)
			metrics.Inc(metrics.EmbedFailures)
			ch <- nil
			return
		}
		ch <- embedding
	}()
	return ch
}

// expandAsync fetches oracle paraphrases in the background. Failures
// yield no expansions.
func (s *SuggestionService) expandAsync(ctx context.Context, query string) <-chan []string {
	ch := make(chan []string, 1)
	if s.oracle == nil || !s.oracle.Available() {
		ch <- nil
		return ch
	}
	go func() {
		expansions, err := s.oracle.ExpandQuery(ctx, query)
		if err != nil {
			logger.Warn("Suggest: oracle expansion failed: %v", err)
			metrics.Inc(metrics.OracleFailures)
			ch <- nil
			return
		}
		ch <- expansions
	}()
	return ch
}

// mergeExpansions searches each oracle paraphrase and folds the
// results in by document ID, keeping the higher score. Results for
// the literal query carry a priority factor over expansion results.
func (s *SuggestionService) mergeExpansions(ctx context.Context, original []domain.Candidate, expansions []string, embedding []float32, limit int) []domain.Candidate {
	byID := make(map[string]domain.Candidate, len(original))
	for _, cand := range original {
		cand.Score *= originalBoost
		byID[cand.ID] = cand
	}

	for _, expansion := range expansions {
		if ctx.Err() != nil {
			break
		}
		extra, err := s.hybrid.Search(ctx, expansion, embedding, limit)
		if err != nil {
			logger.Debug("Suggest: expansion %q search failed: %v", expansion, err)
			continue
		}
		for _, cand := range extra {
			if prev, ok := byID[cand.ID]; !ok || cand.Score > prev.Score {
				byID[cand.ID] = cand
			}
		}
	}

	out := make([]domain.Candidate, 0, len(byID))
	for _, cand := range byID {
		out = append(out, cand)
	}
	domain.SortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *SuggestionService) relatedFromOracle(ctx context.Context, query string, qctx map[string]string) []domain.Suggestion {
	if s.oracle == nil || !s.oracle.Available() {
		return nil
	}
	related, err := s.oracle.GenerateRelated(ctx, query, qctx)
	if err != nil {
		logger.Warn("Related: oracle generation failed: %v", err)
		metrics.Inc(metrics.OracleFailures)
		return nil
	}

	out := make([]domain.Suggestion, 0, len(related))
	for i, text := range related {
		out = append(out, domain.Suggestion{
			Text:   text,
			Score:  relatedOracleBase - relatedOracleStep*float64(i),
			Source: domain.SourceLLM,
			Metadata: map[string]any{
				"model": s.oracle.ModelName(),
			},
		})
	}
	return out
}

func (s *SuggestionService) sequences(ctx context.Context, query, userID string, limit int) domain.QuerySequences {
	if s.behavior == nil {
		return domain.QuerySequences{}
	}
	bctx, cancel := context.WithTimeout(ctx, s.cfg.BehaviorTimeout)
	defer cancel()

	seq, err := s.behavior.Sequences(bctx, query, userID, limit)
	if err != nil {
		logger.Warn("Related: sequence read failed: %v", err)
		metrics.Inc(metrics.BehaviorFailures)
		return domain.QuerySequences{}
	}
	return seq
}

func (s *SuggestionService) relatedFromHybrid(ctx context.Context, query string, limit int) []domain.Suggestion {
	embedding := <-s.embedAsync(ctx, query)

	candidates, err := s.hybrid.Search(ctx, query, embedding, limit)
	if err != nil {
		logger.Warn("Related: hybrid search failed: %v", err)
		return nil
	}

	out := make([]domain.Suggestion, 0, len(candidates))
	for _, cand := range candidates {
		score := cand.Score
		if score > relatedHybridClip {
			score = relatedHybridClip
		}
		out = append(out, domain.Suggestion{
			Text:     cand.Text,
			Score:    score,
			Source:   domain.SourceHybrid,
			Metadata: cand.Metadata,
		})
	}
	return out
}

func (s *SuggestionService) relatedFromHistory(ctx context.Context, query, userID string, limit int) []domain.Suggestion {
	if s.behavior == nil || userID == "" {
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, s.cfg.BehaviorTimeout)
	defer cancel()

	recent, err := s.behavior.RecentSelections(bctx, userID, query, limit)
	if err != nil {
		logger.Warn("Related: history read failed: %v", err)
		metrics.Inc(metrics.BehaviorFailures)
		return nil
	}

	out := make([]domain.Suggestion, 0, len(recent))
	for _, text := range recent {
		out = append(out, domain.Suggestion{
			Text:   text,
			Score:  relatedHistory,
			Source: domain.SourceHistory,
		})
	}
	return out
}

func (s *SuggestionService) limit(opts domain.SuggestOptions) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return s.cfg.MaxSuggestions
}

func (s *SuggestionService) minScore(opts domain.SuggestOptions) float64 {
	if opts.MinScore >= 0 {
		return opts.MinScore
	}
	return s.cfg.MinScore
}

// scoredBand maps sequence weights into a score band below base,
// proportional to the maximum weight in the list.
func scoredBand(scored []domain.ScoredText, base float64, source string) []domain.Suggestion {
	if len(scored) == 0 {
		return nil
	}
	var maxWeight float64
	for _, st := range scored {
		if st.Score > maxWeight {
			maxWeight = st.Score
		}
	}
	out := make([]domain.Suggestion, 0, len(scored))
	for _, st := range scored {
		frac := 1.0
		if maxWeight > 0 {
			frac = st.Score / maxWeight
		}
		out = append(out, domain.Suggestion{
			Text:   st.Text,
			Score:  base * frac,
			Source: source,
		})
	}
	return out
}

// dedupSuggestions folds duplicates by normalized text, keeping the
// highest score, drops the input query itself, and sorts descending
// with ties broken by ascending text.
func dedupSuggestions(pool []domain.Suggestion, query string) []domain.Suggestion {
	queryKey := domain.DedupKey(query)
	best := make(map[string]domain.Suggestion)
	var order []string

	for _, sug := range pool {
		key := domain.DedupKey(sug.Text)
		if key == "" || key == queryKey {
			continue
		}
		if prev, ok := best[key]; !ok {
			best[key] = sug
			order = append(order, key)
		} else if sug.Score > prev.Score {
			best[key] = sug
		}
	}

	out := make([]domain.Suggestion, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	sortSuggestions(out)
	return out
}

func sortSuggestions(suggestions []domain.Suggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Text < suggestions[j].Text
	})
}

// candidatesToSuggestions converts ranked candidates to the response
// shape.
func candidatesToSuggestions(candidates []domain.Candidate) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, domain.Suggestion{
			Text:     cand.Text,
			Score:    cand.Score,
			Source:   cand.Source,
			Metadata: cand.Metadata,
		})
	}
	return out
}
