package driving

import (
	"context"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// SuggestionService provides query assistance to external actors.
type SuggestionService interface {
	// Suggest returns completions for a partially typed query, best
	// first. Long queries go through prefix-preserving completion
	// before the hybrid retrieval path.
	Suggest(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error)

	// Similar returns semantically similar queries via the vector
	// leg alone.
	Similar(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error)

	// Related returns contextually related queries blended from the
	// oracle, sequence edges, hybrid search, and user history.
	Related(ctx context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error)

	// RecordFeedback records a user's selection so future rankings
	// learn from it.
	RecordFeedback(ctx context.Context, sel domain.Selection) error
}
