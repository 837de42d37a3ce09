package domain

import (
	"sort"
	"strings"
)

// Suggestion source tags. A suggestion carries exactly one tag naming
// the strongest signal that produced it.
const (
	SourceKeyword         = "keyword"
	SourceVector          = "vector"
	SourceHybrid          = "hybrid"
	SourcePersonalized    = "personalized"
	SourceHistory         = "history"
	SourceSequenceNext    = "sequence_next"
	SourceSequencePrev    = "sequence_prev"
	SourceLLM             = "llm"
	SourcePrefixPreserved = "prefix_preserved"
)

// Suggestion is a single ranked assistance result.
type Suggestion struct {
	// Text is the suggested query, returned verbatim.
	Text string `json:"text"`

	// Score is the final relevance score. Within one response,
	// scores are non-increasing down the list.
	Score float64 `json:"score"`

	// Source names the signal that produced this suggestion.
	Source string `json:"source"`

	// Metadata carries per-source details (document keywords, prefix
	// completion parts, oracle provenance). Returned verbatim.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SuggestOptions configures a suggestion, similar-query, or
// related-query request.
type SuggestOptions struct {
	// UserID enables personalization when non-empty.
	UserID string

	// Limit is the maximum number of results.
	Limit int

	// MinScore drops candidates scoring below it. Negative means
	// "use the configured default".
	MinScore float64

	// Context is an opaque forward-compat bag. Recognized keys
	// ("domain", "user_history") are forwarded to the oracle;
	// unknown keys are ignored.
	Context map[string]string
}

// Candidate is an intermediate retrieval result flowing from the
// hybrid searcher into the ranker. Raw per-leg scores are kept so
// ties can be broken deterministically after blending.
type Candidate struct {
	// ID is the matched document ID.
	ID string

	// Text is the matched document text.
	Text string

	// Score is the blended, normalized score.
	Score float64

	// LexScore is the raw lexical score before normalization.
	LexScore float64

	// VecScore is the raw cosine similarity in [-1, 1].
	VecScore float64

	// Frequency is the document's selection counter at match time.
	Frequency int64

	// Source is the contributing leg: keyword, vector, or hybrid.
	Source string

	// Metadata is the document metadata, passed through to the
	// suggestion.
	Metadata map[string]any

	// Keywords are the document's boosted tokens.
	Keywords []string
}

// DedupKey normalizes text for duplicate detection: case is folded
// and runs of whitespace collapse to a single space.
func DedupKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Less reports whether candidate a ranks strictly before candidate b
// under the deterministic ordering: higher blended score, then higher
// raw lexical score, then higher frequency, then smaller ID.
func (a Candidate) Less(b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.LexScore != b.LexScore {
		return a.LexScore > b.LexScore
	}
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return a.ID < b.ID
}

// SortCandidates orders candidates under the deterministic ordering.
func SortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Less(candidates[j])
	})
}
