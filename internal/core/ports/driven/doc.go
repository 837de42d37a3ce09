// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SearchEngine: Lexical search and document storage. Always required.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector storage/search. Only enabled together with EmbeddingService.
//   - EmbeddingService: Generates vector embeddings. Without it, the vector leg is disabled.
//   - BehaviorStore: Selection history and counters. Without it, personalization,
//     history, and sequence sources are disabled.
//   - OracleClient: External semantic oracle. Without it, expansions and
//     generated related queries are disabled.
//   - ReconcileLog: Half-failure bookkeeping for the ingest write path.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
