package services

import (
	"context"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/core/ports/driving"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// healthPingTimeout bounds each store ping.
const healthPingTimeout = 2 * time.Second

// HealthService pings each backing store and reports the aggregate.
type HealthService struct {
	searchEngine driven.SearchEngine
	vectorIndex  driven.VectorIndex
	behavior     driven.BehaviorStore
}

// NewHealthService creates a health service. Nil stores count as
// connected: an optional store that is not configured is not a
// degradation.
func NewHealthService(searchEngine driven.SearchEngine, vectorIndex driven.VectorIndex, behavior driven.BehaviorStore) *HealthService {
	return &HealthService{
		searchEngine: searchEngine,
		vectorIndex:  vectorIndex,
		behavior:     behavior,
	}
}

// Health pings each store with a short timeout.
func (s *HealthService) Health(ctx context.Context) domain.Health {
	h := domain.Health{
		LexicalConnected:  s.ping(ctx, func(c context.Context) error { return s.searchEngine.Ping(c) }),
		VectorConnected:   true,
		BehaviorConnected: true,
	}
	if s.vectorIndex != nil {
		h.VectorConnected = s.ping(ctx, s.vectorIndex.Ping)
	}
	if s.behavior != nil {
		h.BehaviorConnected = s.ping(ctx, s.behavior.Ping)
	}

	h.Status = "healthy"
	if !h.Healthy() {
		h.Status = "degraded"
	}
	return h
}

func (s *HealthService) ping(ctx context.Context, fn func(context.Context) error) bool {
	pctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return fn(pctx) == nil
}
