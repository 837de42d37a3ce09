package driven

import (
	"context"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// SearchEngine provides lexical search over indexed query documents.
// One Search call combines three match modes: phrase-prefix on the
// document text, fuzzy whole-token matching, and exact term matching
// on keywords. The engine is also the system of record for documents;
// hits carry the full document so callers need no separate hydration
// step.
type SearchEngine interface {
	// Index adds or updates a document. Atomic per document.
	Index(ctx context.Context, doc domain.Document) error

	// Delete removes a document from the index.
	Delete(ctx context.Context, id string) error

	// Search runs the combined lexical query and returns scored hits,
	// best first. Ties break by higher frequency, then ascending ID.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// SearchPrefix runs the phrase-prefix mode alone. Used by the
	// prefix completion engine to complete a trailing token.
	SearchPrefix(ctx context.Context, prefix string, limit int) ([]SearchHit, error)

	// Get returns the document with the given ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// FindByText returns the document whose text matches exactly.
	FindByText(ctx context.Context, text string) (*domain.Document, error)

	// IncrementFrequency adds delta to the document's selection
	// counter. The counter never decreases.
	IncrementFrequency(ctx context.Context, id string, delta int64) error

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Ping validates the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// SearchHit is one lexical search result.
type SearchHit struct {
	// Document is the matched document.
	Document domain.Document

	// Score is the raw lexical relevance score. Comparable only
	// within one result batch; the hybrid searcher normalizes it.
	Score float64
}
