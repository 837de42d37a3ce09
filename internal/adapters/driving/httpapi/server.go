// Package httpapi exposes the suggestion service over a JSON HTTP
// API under /api/v1.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/helixbi/querypilot/internal/core/ports/driving"
	"github.com/helixbi/querypilot/internal/logger"
)

// Default server settings.
const (
	DefaultAddr            = ":8080"
	readHeaderTimeout      = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address (default :8080).
	Addr string
}

// Server serves the suggestion API over HTTP.
type Server struct {
	suggestions driving.SuggestionService
	ingest      driving.IngestDriver
	health      driving.HealthService
	httpServer  *http.Server
}

// NewServer creates an HTTP server over the driving ports.
func NewServer(suggestions driving.SuggestionService, ingest driving.IngestDriver, health driving.HealthService, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		suggestions: suggestions,
		ingest:      ingest,
		health:      health,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/autocomplete", s.handleAutocomplete)
	mux.HandleFunc("POST /api/v1/similar-queries", s.handleSimilar)
	mux.HandleFunc("POST /api/v1/related-queries", s.handleRelated)
	mux.HandleFunc("POST /api/v1/feedback", s.handleFeedback)
	mux.HandleFunc("POST /api/v1/documents", s.handleAddDocument)
	mux.HandleFunc("POST /api/v1/documents/bulk", s.handleBulkAdd)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	return withRecovery(withRequestID(withCORS(withLogging(mux))))
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
