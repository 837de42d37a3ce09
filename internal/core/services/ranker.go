package services

import (
	"context"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
)

// RankerConfig holds personalization settings.
type RankerConfig struct {
	// PersonalizationWeight scales the preference boost.
	PersonalizationWeight float64

	// LastSelectionBonus is added when the user's last selection for
	// the exact query matches a candidate.
	LastSelectionBonus float64

	// TopPreferences bounds the preference list read per request.
	TopPreferences int

	// MinScore drops candidates scoring below it.
	MinScore float64

	// BehaviorTimeout bounds behavior store reads.
	BehaviorTimeout time.Duration
}

// Ranker applies user-preference boosts and the last-selection bonus
// on top of the blended retrieval scores. Behavior store failures
// leave the request unpersonalized, never failed.
type Ranker struct {
	behavior driven.BehaviorStore
	cfg      RankerConfig
}

// NewRanker creates a ranker. The behavior store is optional; when
// nil ranking reduces to sort + truncate.
func NewRanker(behavior driven.BehaviorStore, cfg RankerConfig) *Ranker {
	if cfg.TopPreferences <= 0 {
		cfg.TopPreferences = 20
	}
	if cfg.BehaviorTimeout <= 0 {
		cfg.BehaviorTimeout = 100 * time.Millisecond
	}
	return &Ranker{behavior: behavior, cfg: cfg}
}

// Rank personalizes, filters, orders, and truncates candidates.
// minScore overrides the configured floor when non-negative.
func (r *Ranker) Rank(ctx context.Context, candidates []domain.Candidate, query, userID string, limit int, minScore float64) []domain.Candidate {
	if minScore < 0 {
		minScore = r.cfg.MinScore
	}

	prefs, lastSel := r.userSignals(ctx, query, userID)

	var maxPref float64
	for _, p := range prefs {
		if p > maxPref {
			maxPref = p
		}
	}

	out := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		base := cand.Score
		var userPart float64

		if maxPref > 0 {
			if score, ok := prefs[cand.Text]; ok {
				boost := r.cfg.PersonalizationWeight * (score / maxPref)
				userPart += base * boost
			}
		}
		if lastSel != "" && cand.Text == lastSel {
			userPart += r.cfg.LastSelectionBonus
		}

		cand.Score = base + userPart
		if userPart > 0 {
			cand.Metadata = withPersonalizedFlag(cand.Metadata)
			if userPart >= cand.Score/2 {
				cand.Source = domain.SourcePersonalized
			}
		}

		if cand.Score < minScore {
			continue
		}
		out = append(out, cand)
	}

	domain.SortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// withPersonalizedFlag marks a candidate's metadata without mutating
// the document's shared map.
func withPersonalizedFlag(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["personalized"] = true
	return out
}

// userSignals reads the user's preferences and last selection under
// the behavior budget. Any failure returns empty signals.
func (r *Ranker) userSignals(ctx context.Context, query, userID string) (map[string]float64, string) {
	if r.behavior == nil || userID == "" {
		return nil, ""
	}

	bctx, cancel := context.WithTimeout(ctx, r.cfg.BehaviorTimeout)
	defer cancel()

	prefs := make(map[string]float64)
	scored, err := r.behavior.UserPreferences(bctx, userID, r.cfg.TopPreferences)
	if err != nil {
		logger.Warn("Ranker: preference read failed for user %s: %v", userID, err)
		metrics.Inc(metrics.BehaviorFailures)
	} else {
		for _, st := range scored {
			prefs[st.Text] = st.Score
		}
	}

	lastSel, err := r.behavior.LastSelection(bctx, userID, query)
	if err != nil {
		// Absence is the common case and not a failure.
		lastSel = ""
	}

	return prefs, lastSel
}
