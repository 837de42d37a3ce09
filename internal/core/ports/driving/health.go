package driving

import (
	"context"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// HealthService reports the reachability of the backing stores.
type HealthService interface {
	// Health pings each store with a short timeout and reports the
	// aggregate status.
	Health(ctx context.Context) domain.Health
}
