// Package domain defines the core business entities for Querypilot.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An indexable query phrase with embedding and frequency
//   - Suggestion: A scored, source-tagged assistance result
//   - Selection: A recorded user feedback event
//   - ScoredText: A text with an accumulated counter score
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
