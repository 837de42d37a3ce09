// Package driving defines the interfaces through which external actors
// drive the application.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The HTTP API, MCP server, and CLI depend on these interfaces; core
// services implement them.
//
//   - SuggestionService: query assistance and feedback recording
//   - IngestDriver: document write path
//   - HealthService: store reachability
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driving
