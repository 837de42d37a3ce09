package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
)

// HybridConfig holds blend weights and per-leg budgets.
type HybridConfig struct {
	// KeywordWeight is the lexical leg's share of the blended score.
	KeywordWeight float64

	// VectorWeight is the vector leg's share. Must sum to 1 with
	// KeywordWeight.
	VectorWeight float64

	// LexTimeout bounds the lexical leg.
	LexTimeout time.Duration

	// VecTimeout bounds the vector leg.
	VecTimeout time.Duration
}

// HybridSearcher fans one query out to the lexical and vector legs,
// normalizes each batch, and blends the scores. One failed leg
// degrades to the other; both failed is an error.
type HybridSearcher struct {
	searchEngine driven.SearchEngine
	vectorIndex  driven.VectorIndex
	cfg          HybridConfig
}

// NewHybridSearcher creates a hybrid searcher. The vector index is
// optional; when nil every search is keyword-only.
func NewHybridSearcher(searchEngine driven.SearchEngine, vectorIndex driven.VectorIndex, cfg HybridConfig) *HybridSearcher {
	if cfg.KeywordWeight == 0 && cfg.VectorWeight == 0 {
		cfg.KeywordWeight = 0.7
		cfg.VectorWeight = 0.3
	}
	return &HybridSearcher{
		searchEngine: searchEngine,
		vectorIndex:  vectorIndex,
		cfg:          cfg,
	}
}

// Search runs both legs concurrently and blends the results. The
// query embedding is optional; when nil the vector leg is skipped.
// Results are deduplicated by document ID and ordered by the
// deterministic candidate ordering.
func (h *HybridSearcher) Search(ctx context.Context, query string, embedding []float32, limit int) ([]domain.Candidate, error) {
	return h.search(ctx, query, embedding, limit, h.cfg.KeywordWeight, h.cfg.VectorWeight)
}

// SearchVectorOnly runs the vector leg alone, used by similar-query
// retrieval. The lexical Search call is skipped entirely; vector hits
// resolve their documents through the lexical store's Get.
func (h *HybridSearcher) SearchVectorOnly(ctx context.Context, query string, embedding []float32, limit int) ([]domain.Candidate, error) {
	return h.search(ctx, query, embedding, limit, 0, 1)
}

func (h *HybridSearcher) search(ctx context.Context, query string, embedding []float32, limit int, wKw, wVec float64) ([]domain.Candidate, error) {
	var (
		lexHits []driven.SearchHit
		vecHits []driven.VectorHit
		lexErr  error
		vecErr  error
	)

	runVector := h.vectorIndex != nil && embedding != nil && wVec > 0
	runLexical := wKw > 0

	var wg sync.WaitGroup

	if runLexical {
		wg.Add(1)
		go func() {
			defer wg.Done()
			legCtx, cancel := context.WithTimeout(ctx, h.legTimeout(h.cfg.LexTimeout))
			defer cancel()
			lexHits, lexErr = h.searchEngine.Search(legCtx, query, limit)
		}()
	}

	if runVector {
		wg.Add(1)
		go func() {
			defer wg.Done()
			legCtx, cancel := context.WithTimeout(ctx, h.legTimeout(h.cfg.VecTimeout))
			defer cancel()
			vecHits, vecErr = h.vectorIndex.Search(legCtx, embedding, limit)
		}()
	}

	wg.Wait()

	if lexErr != nil {
		logger.Warn("Hybrid search: lexical leg failed: %v", lexErr)
		metrics.Inc(metrics.LexicalDegraded)
	}
	if vecErr != nil {
		logger.Warn("Hybrid search: vector leg failed: %v", vecErr)
		metrics.Inc(metrics.VectorDegraded)
	}

	switch {
	case runLexical && runVector && lexErr != nil && vecErr != nil:
		return nil, fmt.Errorf("hybrid search: lexical=%w, vector=%w: %w",
			lexErr, vecErr, domain.ErrUnavailable)
	case runLexical && !runVector && lexErr != nil:
		return nil, fmt.Errorf("hybrid search: %w: %w", lexErr, domain.ErrUnavailable)
	case !runLexical && runVector && vecErr != nil:
		return nil, fmt.Errorf("hybrid search: %w: %w", vecErr, domain.ErrUnavailable)
	}

	candidates := h.blend(ctx, lexHits, vecHits, wKw, wVec)
	domain.SortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// blend normalizes each leg's scores and merges them by document ID.
// Lexical scores divide by the batch max; vector similarities map
// from [-1,1] into [0,1].
func (h *HybridSearcher) blend(ctx context.Context, lexHits []driven.SearchHit, vecHits []driven.VectorHit, wKw, wVec float64) []domain.Candidate {
	byID := make(map[string]*domain.Candidate)

	var lexMax float64
	for _, hit := range lexHits {
		if hit.Score > lexMax {
			lexMax = hit.Score
		}
	}

	for _, hit := range lexHits {
		norm := 0.0
		if lexMax > 0 {
			norm = hit.Score / lexMax
		}
		byID[hit.Document.ID] = &domain.Candidate{
			ID:        hit.Document.ID,
			Text:      hit.Document.Text,
			Score:     wKw * norm,
			LexScore:  hit.Score,
			Frequency: hit.Document.Frequency,
			Source:    domain.SourceKeyword,
			Metadata:  hit.Document.Metadata,
			Keywords:  hit.Document.Keywords,
		}
	}

	for _, hit := range vecHits {
		norm := (hit.Similarity + 1) / 2
		if cand, ok := byID[hit.DocID]; ok {
			cand.Score += wVec * norm
			cand.VecScore = hit.Similarity
			cand.Source = domain.SourceHybrid
			continue
		}

		doc, err := h.searchEngine.Get(ctx, hit.DocID)
		if err != nil {
			// The vector index can briefly hold ids the lexical
			// store no longer has.
			logger.Debug("Hybrid search: vector hit %s has no document: %v", hit.DocID, err)
			continue
		}
		byID[hit.DocID] = &domain.Candidate{
			ID:        doc.ID,
			Text:      doc.Text,
			Score:     wVec * norm,
			VecScore:  hit.Similarity,
			Frequency: doc.Frequency,
			Source:    domain.SourceVector,
			Metadata:  doc.Metadata,
			Keywords:  doc.Keywords,
		}
	}

	out := make([]domain.Candidate, 0, len(byID))
	for _, cand := range byID {
		out = append(out, *cand)
	}
	return out
}

func (h *HybridSearcher) legTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}
