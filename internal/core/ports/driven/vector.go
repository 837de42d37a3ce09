package driven

import "context"

// VectorIndex provides nearest-neighbour search over unit vectors
// with cosine similarity. Results must be deterministic given the
// same insertion order and parameters.
type VectorIndex interface {
	// Add inserts or replaces the vector for a document ID.
	Add(ctx context.Context, docID string, vector []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, docID string) error

	// Search finds the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Ping validates the index is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit is one similarity search result.
type VectorHit struct {
	// DocID is the matched document.
	DocID string

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64
}
