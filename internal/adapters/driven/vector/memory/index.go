// Package memory provides an exact in-memory vector index. Search is
// brute-force cosine over unit vectors, which keeps results exact and
// deterministic for any insertion order.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.VectorIndex.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
}

// Add inserts or replaces the vector for a document ID.
func (ix *Index) Add(_ context.Context, docID string, vector []float32) error {
	if docID == "" {
		return domain.ErrInvalidInput
	}
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(vector), ix.dimension)
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[docID] = stored
	return nil
}

// Delete removes a vector from the index.
func (ix *Index) Delete(_ context.Context, docID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.vectors[docID]; !ok {
		return domain.ErrNotFound
	}
	delete(ix.vectors, docID)
	return nil
}

// Search finds the k nearest neighbours to the query vector.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		hits = append(hits, driven.VectorHit{
			DocID: id,
			// Vectors are unit length, so the dot product is the
			// cosine similarity.
			Similarity: dot(query, vec),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].DocID < hits[j].DocID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (ix *Index) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors), nil
}

// Ping validates the index is reachable.
func (ix *Index) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
