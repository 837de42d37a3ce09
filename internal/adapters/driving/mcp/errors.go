// Package mcp provides an MCP (Model Context Protocol) server adapter
// for the query-assistance engine. It lets AI assistants fetch
// suggestions, similar and related queries, and record feedback.
package mcp

import "errors"

// ErrMissingSuggestionService is returned when the suggestion service
// is not provided.
var ErrMissingSuggestionService = errors.New("mcp: suggestion service is required")
