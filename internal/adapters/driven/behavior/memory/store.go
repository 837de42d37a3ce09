// Package memory provides an in-memory behavior store. It backs
// tests and single-process deployments that do not need persistence
// across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BehaviorStore = (*Store)(nil)

// Config holds behavior store settings.
type Config struct {
	// HistoryCap bounds each user's history list (default 100).
	HistoryCap int

	// PreferenceTTL expires the per-query last selection. Zero means
	// no expiry.
	PreferenceTTL time.Duration
}

// lastSel is a last selection with its expiry.
type lastSel struct {
	text    string
	expires time.Time
}

// Store is an in-memory implementation of driven.BehaviorStore.
type Store struct {
	mu         sync.RWMutex
	historyCap int
	ttl        time.Duration

	history    map[string][]domain.HistoryEntry         // user -> entries, newest first
	last       map[string]map[string]lastSel            // user -> query -> selection
	prefs      map[string]map[string]float64            // user -> selected -> score
	popularity map[string]map[string]float64            // query -> selected -> score
	seqNext    map[string]map[string]float64            // query -> next -> weight (global)
	seqPrev    map[string]map[string]float64            // query -> prev -> weight (global reverse)
	userSeq    map[string]map[string]map[string]float64 // user -> query -> next -> weight
}

// NewStore creates an empty in-memory behavior store.
func NewStore(cfg Config) *Store {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 100
	}
	return &Store{
		historyCap: cfg.HistoryCap,
		ttl:        cfg.PreferenceTTL,
		history:    make(map[string][]domain.HistoryEntry),
		last:       make(map[string]map[string]lastSel),
		prefs:      make(map[string]map[string]float64),
		popularity: make(map[string]map[string]float64),
		seqNext:    make(map[string]map[string]float64),
		seqPrev:    make(map[string]map[string]float64),
		userSeq:    make(map[string]map[string]map[string]float64),
	}
}

// RecordSelection records one feedback event.
func (s *Store) RecordSelection(_ context.Context, sel domain.Selection) error {
	if sel.UserID == "" || sel.Query == "" || sel.Selected == "" {
		return domain.ErrInvalidInput
	}
	at := sel.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Sequence edges link the previous distinct query to this one.
	if prev := s.history[sel.UserID]; len(prev) > 0 && prev[0].Query != sel.Query {
		bump(s.seqNext, prev[0].Query, sel.Query)
		bump(s.seqPrev, sel.Query, prev[0].Query)
		if s.userSeq[sel.UserID] == nil {
			s.userSeq[sel.UserID] = make(map[string]map[string]float64)
		}
		bump(s.userSeq[sel.UserID], prev[0].Query, sel.Query)
	}

	entries := append([]domain.HistoryEntry{{Query: sel.Query, Selected: sel.Selected, At: at}},
		s.history[sel.UserID]...)
	if len(entries) > s.historyCap {
		entries = entries[:s.historyCap]
	}
	s.history[sel.UserID] = entries

	if s.last[sel.UserID] == nil {
		s.last[sel.UserID] = make(map[string]lastSel)
	}
	var expires time.Time
	if s.ttl > 0 {
		expires = at.Add(s.ttl)
	}
	s.last[sel.UserID][sel.Query] = lastSel{text: sel.Selected, expires: expires}

	bump(s.prefs, sel.UserID, sel.Selected)
	bump(s.popularity, sel.Query, sel.Selected)

	return nil
}

// bump increments m[key][member] by one, allocating as needed.
func bump(m map[string]map[string]float64, key, member string) {
	if m[key] == nil {
		m[key] = make(map[string]float64)
	}
	m[key][member]++
}

// UserPreferences returns the user's most-selected texts.
func (s *Store) UserPreferences(_ context.Context, userID string, topM int) ([]domain.ScoredText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topK(s.prefs[userID], topM), nil
}

// LastSelection returns the text last selected for this exact query.
func (s *Store) LastSelection(_ context.Context, userID, query string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.last[userID][query]
	if !ok {
		return "", domain.ErrNotFound
	}
	if !sel.expires.IsZero() && time.Now().After(sel.expires) {
		return "", domain.ErrNotFound
	}
	return sel.text, nil
}

// Sequences returns the learned session neighbours of a query.
func (s *Store) Sequences(_ context.Context, query, userID string, limit int) (domain.QuerySequences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := s.seqNext[query]
	if userID != "" {
		if userNext := s.userSeq[userID][query]; len(userNext) > 0 {
			// Per-user edges override the global weight on
			// duplicate texts.
			merged := make(map[string]float64, len(next)+len(userNext))
			for text, w := range next {
				merged[text] = w
			}
			for text, w := range userNext {
				merged[text] = w
			}
			next = merged
		}
	}

	return domain.QuerySequences{
		Next:     topK(next, limit),
		Previous: topK(s.seqPrev[query], limit),
	}, nil
}

// RecentSelections returns texts the user selected for this query,
// newest first.
func (s *Store) RecentSelections(_ context.Context, userID, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, entry := range s.history[userID] {
		if entry.Query != query {
			continue
		}
		out = append(out, entry.Selected)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// History returns the user's selection history, newest first.
func (s *Store) History(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Ping validates the store is reachable.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// topK converts a counter map to a bounded descending list with the
// deterministic tiebreak (score desc, text asc).
func topK(counts map[string]float64, limit int) []domain.ScoredText {
	if len(counts) == 0 {
		return nil
	}
	out := make([]domain.ScoredText, 0, len(counts))
	for text, score := range counts {
		out = append(out, domain.ScoredText{Text: text, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
