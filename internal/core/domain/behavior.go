package domain

import "time"

// Selection is one recorded feedback event: the user typed Query and
// picked Selected from the offered suggestions.
type Selection struct {
	// UserID identifies the selecting user. Required.
	UserID string

	// Query is the text the user had typed.
	Query string

	// Selected is the suggestion text the user picked.
	Selected string

	// At is when the selection happened.
	At time.Time
}

// HistoryEntry is one element of a user's bounded selection history,
// newest first.
type HistoryEntry struct {
	// Query is the text the user had typed.
	Query string `json:"query"`

	// Selected is the suggestion the user picked.
	Selected string `json:"selected"`

	// At is when the selection happened.
	At time.Time `json:"at"`
}

// ScoredText pairs a text with an accumulated counter score.
// Lists of ScoredText are ordered by descending score with ties
// broken by ascending text.
type ScoredText struct {
	// Text is the counted value.
	Text string

	// Score is the accumulated weight.
	Score float64
}

// QuerySequences holds the learned session neighbours of a query.
type QuerySequences struct {
	// Next lists queries that commonly follow this one.
	Next []ScoredText

	// Previous lists queries that commonly precede this one.
	Previous []ScoredText
}
