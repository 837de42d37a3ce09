package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document represents an indexable query phrase.
// It is the unit stored in both the lexical and the vector index;
// a single ID resolves the same document in both.
type Document struct {
	// ID is the unique identifier for the document.
	// Assigned as the hex SHA-256 of Text when not provided by the caller.
	ID string

	// Text is the user-visible phrase. UTF-8, may mix CJK and Latin.
	Text string

	// Keywords is an unordered set of normalized tokens used for
	// strongly boosted exact term matches.
	Keywords []string

	// Metadata contains arbitrary key-value pairs, returned verbatim.
	Metadata map[string]any

	// Embedding is the unit-length vector representation of Text.
	Embedding []float32

	// Frequency counts selections of this document. Monotonically
	// non-decreasing.
	Frequency int64

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// DocumentInput is the caller-supplied form of a document before
// ingestion assigns the ID and computes the embedding.
type DocumentInput struct {
	// ID is optional; when empty it is derived from Text.
	ID string

	// Text is the phrase to index. Required.
	Text string

	// Keywords are optional boosted match tokens.
	Keywords []string

	// Metadata is stored and returned verbatim.
	Metadata map[string]any
}

// Validate checks that the input can be ingested.
func (in DocumentInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return ErrInvalidInput
	}
	return nil
}

// HashID derives a stable document ID from its text.
// Identical text always produces the same ID, which makes
// repeated adds of the same phrase idempotent.
func HashID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BulkResult reports the outcome of a bulk ingest.
type BulkResult struct {
	// SuccessCount is the number of documents fully or lexically indexed.
	SuccessCount int

	// ErrorCount is the number of documents that failed to index.
	ErrorCount int

	// Errors maps document ID (or ordinal position for documents
	// without a derivable ID) to the failure reason.
	Errors map[string]string
}
