package driven

import (
	"context"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// BehaviorStore persists user selection history, preferences, global
// popularity, and pairwise query sequence edges. It is the only
// mutator of these counters.
//
// Behavior operations never fail a calling request: services log and
// swallow store errors and continue unpersonalized.
type BehaviorStore interface {
	// RecordSelection records one feedback event: prepends to the
	// user's bounded history, stores the last selection for the
	// exact query with a TTL, increments the user's preference score
	// and the global popularity counter, and - when the history held
	// a distinct previous query - increments the global and per-user
	// sequence edge from it to this query.
	RecordSelection(ctx context.Context, sel domain.Selection) error

	// UserPreferences returns the user's most-selected texts,
	// descending by accumulated score, capped at topM.
	UserPreferences(ctx context.Context, userID string, topM int) ([]domain.ScoredText, error)

	// LastSelection returns the text the user last selected for this
	// exact query, or domain.ErrNotFound when absent or expired.
	LastSelection(ctx context.Context, userID, query string) (string, error)

	// Sequences returns the queries that commonly follow and precede
	// the given query. Per-user edges are merged over global edges
	// for "next" when userID is non-empty; the user's score wins on
	// a duplicate text. Both lists are capped at limit.
	Sequences(ctx context.Context, query, userID string, limit int) (domain.QuerySequences, error)

	// RecentSelections returns texts the user selected for this
	// exact query, newest first, capped at limit.
	RecentSelections(ctx context.Context, userID, query string, limit int) ([]string, error)

	// History returns the user's selection history, newest first,
	// capped at limit.
	History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ReconcileLog records documents left half-indexed by a write
// failure, so a later sweep can repair the missing leg.
type ReconcileLog interface {
	// Record appends one half-failure entry.
	Record(ctx context.Context, entry ReconcileEntry) error

	// Pending returns unresolved entries, oldest first.
	Pending(ctx context.Context, limit int) ([]ReconcileEntry, error)

	// Resolve marks an entry repaired.
	Resolve(ctx context.Context, id int64) error
}

// ReconcileEntry is one recorded half-failure.
type ReconcileEntry struct {
	// ID is assigned by the log.
	ID int64

	// DocID is the half-indexed document.
	DocID string

	// MissingLeg names the index that missed the write: "lexical" or
	// "vector".
	MissingLeg string

	// Reason is the failure message.
	Reason string

	// At is when the failure was recorded.
	At time.Time
}
