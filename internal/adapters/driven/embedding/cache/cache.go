// Package cache decorates any embedding service with a bounded LRU
// cache keyed by the exact input text. Hits skip the provider
// entirely; writes are idempotent because providers are
// deterministic within a run.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/metrics"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the cache capacity when none is configured.
const DefaultSize = 10000

// EmbeddingService wraps an inner provider with an LRU cache.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// Wrap decorates inner with a cache of the given capacity.
func Wrap(inner driven.EmbeddingService, size int) *EmbeddingService {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		// Only reachable with a non-positive size, which is already
		// normalized above.
		c, _ = lru.New[string, []float32](DefaultSize)
	}
	return &EmbeddingService{inner: inner, cache: c}
}

// Embed returns the cached vector for text, or asks the provider.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.cache.Get(text); ok {
		metrics.Inc(metrics.EmbedCacheHits)
		return cloneVec(vec), nil
	}
	metrics.Inc(metrics.EmbedCacheMisses)

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(text, cloneVec(vec))
	return vec, nil
}

// EmbedBatch serves cached entries and forwards only the misses to
// the provider in one batch call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := s.cache.Get(text); ok {
			metrics.Inc(metrics.EmbedCacheHits)
			out[i] = cloneVec(vec)
			continue
		}
		metrics.Inc(metrics.EmbedCacheMisses)
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range vecs {
		s.cache.Add(missTexts[j], cloneVec(vec))
		out[missIdx[j]] = vec
	}
	return out, nil
}

// Dimensions returns the inner provider's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the inner provider's model name.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping validates the inner provider is reachable.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close releases the inner provider's resources.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

// cloneVec copies a vector so caller mutations never reach the cache.
func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
