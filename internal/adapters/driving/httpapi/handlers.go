package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
)

// Request limit bounds.
const (
	defaultLimit = 10
	maxLimit     = 50
)

// suggestRequest is the shared body of the three query endpoints.
type suggestRequest struct {
	Query   string            `json:"query"`
	UserID  string            `json:"user_id,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// suggestResponse is the autocomplete reply.
type suggestResponse struct {
	Query       string              `json:"query"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	Total       int                 `json:"total"`
}

// similarResponse is the similar-queries reply.
type similarResponse struct {
	Query          string              `json:"query"`
	SimilarQueries []domain.Suggestion `json:"similar_queries"`
	Total          int                 `json:"total"`
}

// relatedResponse is the related-queries reply.
type relatedResponse struct {
	Query          string              `json:"query"`
	RelatedQueries []domain.Suggestion `json:"related_queries"`
	Total          int                 `json:"total"`
}

// feedbackRequest is the feedback body.
type feedbackRequest struct {
	Query              string    `json:"query"`
	SelectedSuggestion string    `json:"selected_suggestion"`
	UserID             string    `json:"user_id,omitempty"`
	Timestamp          time.Time `json:"timestamp,omitempty"`
}

// documentRequest is the single-document ingest body.
type documentRequest struct {
	DocID    string         `json:"doc_id,omitempty"`
	Text     string         `json:"text"`
	Keywords []string       `json:"keywords,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// bulkRequest is the bulk ingest body.
type bulkRequest struct {
	Documents []documentRequest `json:"documents"`
}

// statusResponse is the generic success/message reply.
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// bulkResponse is the bulk ingest reply.
type bulkResponse struct {
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	Errors       map[string]string `json:"errors,omitempty"`
	Message      string            `json:"message"`
}

// errorResponse is the error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeSuggestRequest(w, r)
	if !ok {
		return
	}

	suggestions, err := s.suggestions.Suggest(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{
		Query:       req.Query,
		Suggestions: emptyIfNil(suggestions),
		Total:       len(suggestions),
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeSuggestRequest(w, r)
	if !ok {
		return
	}

	similar, err := s.suggestions.Similar(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarResponse{
		Query:          req.Query,
		SimilarQueries: emptyIfNil(similar),
		Total:          len(similar),
	})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeSuggestRequest(w, r)
	if !ok {
		return
	}

	related, err := s.suggestions.Related(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relatedResponse{
		Query:          req.Query,
		RelatedQueries: emptyIfNil(related),
		Total:          len(related),
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	err := s.suggestions.RecordFeedback(r.Context(), domain.Selection{
		UserID:   req.UserID,
		Query:    req.Query,
		Selected: req.SelectedSuggestion,
		At:       req.Timestamp,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "feedback recorded",
	})
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	id, err := s.ingest.Add(r.Context(), domain.DocumentInput{
		ID:       req.DocID,
		Text:     req.Text,
		Keywords: req.Keywords,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "document indexed",
		ID:      id,
	})
}

func (s *Server) handleBulkAdd(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeBadRequest(w, "documents is required")
		return
	}

	inputs := make([]domain.DocumentInput, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = domain.DocumentInput{
			ID:       d.DocID,
			Text:     d.Text,
			Keywords: d.Keywords,
			Metadata: d.Metadata,
		}
	}

	result, err := s.ingest.BulkAdd(r.Context(), inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Errors:       result.Errors,
		Message:      "bulk ingest complete",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Health(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"counters": metrics.Snapshot(),
	})
}

// decodeSuggestRequest parses and validates the shared query body.
func (s *Server) decodeSuggestRequest(w http.ResponseWriter, r *http.Request) (suggestRequest, domain.SuggestOptions, bool) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return req, domain.SuggestOptions{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeBadRequest(w, "query is required")
		return req, domain.SuggestOptions{}, false
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 1 || req.Limit > maxLimit {
		writeBadRequest(w, "limit must be between 1 and 50")
		return req, domain.SuggestOptions{}, false
	}

	opts := domain.SuggestOptions{
		UserID:   req.UserID,
		Limit:    req.Limit,
		MinScore: -1,
		Context:  req.Context,
	}
	return req, opts, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("HTTP: response encoding failed: %v", err)
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps sentinel errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrVectorUnavailable),
		errors.Is(err, domain.ErrLexicalUnavailable),
		errors.Is(err, domain.ErrBehaviorUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// emptyIfNil keeps JSON arrays non-null for empty results.
func emptyIfNil(s []domain.Suggestion) []domain.Suggestion {
	if s == nil {
		return []domain.Suggestion{}
	}
	return s
}
