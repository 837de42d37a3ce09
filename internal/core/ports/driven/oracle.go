package driven

import "context"

// OracleClient is the narrow interface to an external semantic oracle
// used for query expansion, related-query generation, and prefix-tail
// ranking. This is an optional service - when nil, every caller
// proceeds without oracle input.
//
// Callers must treat any error, timeout, or unparseable reply as an
// empty result. Oracle failures never fail a request.
type OracleClient interface {
	// ExpandQuery returns semantic paraphrases of the query, best
	// first, capped at the configured expansion limit.
	ExpandQuery(ctx context.Context, query string) ([]string, error)

	// GenerateRelated returns queries a user might ask next, capped
	// at the configured related limit. The context bag carries
	// recognized request keys such as "domain".
	GenerateRelated(ctx context.Context, query string, qctx map[string]string) ([]string, error)

	// RankPrefixCompletions orders candidate completions of the
	// incomplete tail given the stable prefix. Scores are in [0, 1].
	RankPrefixCompletions(ctx context.Context, prefix, tail string, candidates []string, qctx map[string]string) ([]RankedCompletion, error)

	// Available reports whether the oracle is configured and usable.
	Available() bool

	// ModelName returns the name of the underlying model.
	ModelName() string

	// Close releases resources.
	Close() error
}

// RankedCompletion is one oracle-scored tail completion.
type RankedCompletion struct {
	// Text is the completed tail, not the full suggestion.
	Text string

	// Score is the oracle's relevance estimate in [0, 1].
	Score float64
}
