package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// defaultLimit applies when a tool call omits the limit.
const defaultLimit = 10

// SuggestInput is the shared input schema for the three query tools.
type SuggestInput struct {
	Query   string            `json:"query" jsonschema:"the partially typed or completed query"`
	UserID  string            `json:"user_id,omitempty" jsonschema:"user id enabling personalization"`
	Limit   int               `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Context map[string]string `json:"context,omitempty" jsonschema:"optional context such as the business domain"`
}

// SuggestOutput is the output schema for the query tools.
type SuggestOutput struct {
	Suggestions []SuggestionOutput `json:"suggestions"`
	Count       int                `json:"count"`
}

// SuggestionOutput represents a single suggestion.
type SuggestionOutput struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FeedbackInput is the input schema for the feedback tool.
type FeedbackInput struct {
	Query    string `json:"query" jsonschema:"the query the user had typed"`
	Selected string `json:"selected_suggestion" jsonschema:"the suggestion text the user picked"`
	UserID   string `json:"user_id" jsonschema:"the selecting user"`
}

// FeedbackOutput is the output schema for the feedback tool.
type FeedbackOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "suggest_queries",
		Description: "Complete a partially typed analytics query",
	}, s.handleSuggest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "similar_queries",
		Description: "Find queries semantically similar to the given one",
	}, s.handleSimilar)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "related_queries",
		Description: "Find follow-up queries a user might ask next",
	}, s.handleRelated)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_feedback",
		Description: "Record which suggestion the user selected",
	}, s.handleFeedback)
}

// handleSuggest handles the suggest_queries tool invocation.
func (s *Server) handleSuggest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestInput,
) (*mcp.CallToolResult, SuggestOutput, error) {
	suggestions, err := s.ports.Suggestions.Suggest(ctx, input.Query, toOptions(input))
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	return nil, toOutput(suggestions), nil
}

// handleSimilar handles the similar_queries tool invocation.
func (s *Server) handleSimilar(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestInput,
) (*mcp.CallToolResult, SuggestOutput, error) {
	similar, err := s.ports.Suggestions.Similar(ctx, input.Query, toOptions(input))
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	return nil, toOutput(similar), nil
}

// handleRelated handles the related_queries tool invocation.
func (s *Server) handleRelated(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestInput,
) (*mcp.CallToolResult, SuggestOutput, error) {
	related, err := s.ports.Suggestions.Related(ctx, input.Query, toOptions(input))
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	return nil, toOutput(related), nil
}

// handleFeedback handles the record_feedback tool invocation.
func (s *Server) handleFeedback(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FeedbackInput,
) (*mcp.CallToolResult, FeedbackOutput, error) {
	err := s.ports.Suggestions.RecordFeedback(ctx, domain.Selection{
		UserID:   input.UserID,
		Query:    input.Query,
		Selected: input.Selected,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return nil, FeedbackOutput{}, err
	}
	return nil, FeedbackOutput{Success: true, Message: "feedback recorded"}, nil
}

func toOptions(input SuggestInput) domain.SuggestOptions {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return domain.SuggestOptions{
		UserID:   input.UserID,
		Limit:    limit,
		MinScore: -1,
		Context:  input.Context,
	}
}

func toOutput(suggestions []domain.Suggestion) SuggestOutput {
	out := SuggestOutput{
		Suggestions: make([]SuggestionOutput, len(suggestions)),
		Count:       len(suggestions),
	}
	for i, sug := range suggestions {
		out.Suggestions[i] = SuggestionOutput{
			Text:     sug.Text,
			Score:    sug.Score,
			Source:   sug.Source,
			Metadata: sug.Metadata,
		}
	}
	return out
}
