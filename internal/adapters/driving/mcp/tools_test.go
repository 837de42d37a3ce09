package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/core/domain"
)

type stubSuggestions struct {
	suggestions []domain.Suggestion
	lastQuery   string
	lastOpts    domain.SuggestOptions
	lastSel     domain.Selection
	err         error
}

func (s *stubSuggestions) Suggest(_ context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	s.lastQuery, s.lastOpts = query, opts
	return s.suggestions, s.err
}

func (s *stubSuggestions) Similar(_ context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	s.lastQuery, s.lastOpts = query, opts
	return s.suggestions, s.err
}

func (s *stubSuggestions) Related(_ context.Context, query string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	s.lastQuery, s.lastOpts = query, opts
	return s.suggestions, s.err
}

func (s *stubSuggestions) RecordFeedback(_ context.Context, sel domain.Selection) error {
	s.lastSel = sel
	return s.err
}

func newTestServer(t *testing.T, stub *stubSuggestions) *Server {
	t.Helper()
	srv, err := NewServer(&Ports{Suggestions: stub})
	require.NoError(t, err)
	return srv
}

func TestNewServerRequiresSuggestions(t *testing.T) {
	_, err := NewServer(&Ports{})
	assert.ErrorIs(t, err, ErrMissingSuggestionService)
}

func TestHandleSuggest(t *testing.T) {
	stub := &stubSuggestions{suggestions: []domain.Suggestion{
		{Text: "销售额趋势分析", Score: 0.9, Source: domain.SourceKeyword},
		{Text: "销售额", Score: 0.8, Source: domain.SourceVector},
	}}
	srv := newTestServer(t, stub)

	_, out, err := srv.handleSuggest(context.Background(), nil, SuggestInput{
		Query:  "销售",
		UserID: "u1",
		Limit:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "销售额趋势分析", out.Suggestions[0].Text)
	assert.Equal(t, "销售", stub.lastQuery)
	assert.Equal(t, "u1", stub.lastOpts.UserID)
	assert.Equal(t, 5, stub.lastOpts.Limit)
	assert.Equal(t, -1.0, stub.lastOpts.MinScore)
}

func TestHandleSuggestDefaultLimit(t *testing.T) {
	stub := &stubSuggestions{}
	srv := newTestServer(t, stub)

	_, _, err := srv.handleSuggest(context.Background(), nil, SuggestInput{Query: "销售"})
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, stub.lastOpts.Limit)
}

func TestHandleSuggestPropagatesError(t *testing.T) {
	stub := &stubSuggestions{err: domain.ErrInvalidInput}
	srv := newTestServer(t, stub)

	_, _, err := srv.handleSuggest(context.Background(), nil, SuggestInput{Query: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHandleSimilarForwardsContext(t *testing.T) {
	stub := &stubSuggestions{}
	srv := newTestServer(t, stub)

	_, _, err := srv.handleSimilar(context.Background(), nil, SuggestInput{
		Query:   "销售额",
		Context: map[string]string{"domain": "retail"},
	})
	require.NoError(t, err)
	assert.Equal(t, "retail", stub.lastOpts.Context["domain"])
}

func TestHandleRelated(t *testing.T) {
	stub := &stubSuggestions{suggestions: []domain.Suggestion{
		{Text: "竞争分析", Score: 0.85, Source: domain.SourceSequenceNext},
	}}
	srv := newTestServer(t, stub)

	_, out, err := srv.handleRelated(context.Background(), nil, SuggestInput{Query: "销售分析"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, domain.SourceSequenceNext, out.Suggestions[0].Source)
}

func TestHandleFeedback(t *testing.T) {
	stub := &stubSuggestions{}
	srv := newTestServer(t, stub)

	_, out, err := srv.handleFeedback(context.Background(), nil, FeedbackInput{
		Query:    "销售",
		Selected: "销售额趋势分析",
		UserID:   "u1",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "u1", stub.lastSel.UserID)
	assert.Equal(t, "销售额趋势分析", stub.lastSel.Selected)
	assert.False(t, stub.lastSel.At.IsZero())
}

func TestHandleFeedbackPropagatesError(t *testing.T) {
	stub := &stubSuggestions{err: errors.New("store down")}
	srv := newTestServer(t, stub)

	_, _, err := srv.handleFeedback(context.Background(), nil, FeedbackInput{
		Query:    "销售",
		Selected: "销售额",
		UserID:   "u1",
	})
	assert.Error(t, err)
}
