// Package services implements the application core: hybrid retrieval,
// personalized ranking, prefix-preserving completion, document
// ingestion, and the suggestion orchestrator that ties them together.
// Services depend only on the driven ports; adapters are injected at
// startup.
package services
