package mcp

import (
	"github.com/helixbi/querypilot/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP
// server. This provides a single injection point.
type Ports struct {
	// Suggestions provides query assistance. Required.
	Suggestions driving.SuggestionService

	// Health reports store reachability. Optional.
	Health driving.HealthService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Suggestions == nil {
		return ErrMissingSuggestionService
	}
	return nil
}
