package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates no candidate source could serve the
	// request. Surfaced only when every retrieval leg failed.
	ErrUnavailable = errors.New("service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable. Vector search degrades to keyword-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLexicalUnavailable indicates the lexical index is not
	// configured or unreachable.
	ErrLexicalUnavailable = errors.New("lexical index unavailable")

	// ErrVectorUnavailable indicates the vector index is not
	// configured or unreachable.
	ErrVectorUnavailable = errors.New("vector index unavailable")

	// ErrBehaviorUnavailable indicates the behavior store is not
	// configured. Personalization is disabled without it.
	ErrBehaviorUnavailable = errors.New("behavior store unavailable")

	// ErrOracleUnavailable indicates the semantic oracle is not
	// configured. Expansion and generated related queries are disabled.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)
