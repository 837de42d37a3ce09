package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"identical", "销售额趋势", "销售额趋势", true},
		{"case folded", "Sales Trend", "sales trend", true},
		{"whitespace collapsed", "sales   trend", "sales trend", true},
		{"leading and trailing space", "  销售额 ", "销售额", true},
		{"tab separated", "sales\ttrend", "sales trend", true},
		{"different text", "销售额", "销量", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, DedupKey(tt.a), DedupKey(tt.b))
			} else {
				assert.NotEqual(t, DedupKey(tt.a), DedupKey(tt.b))
			}
		})
	}
}

func TestCandidate_Less_Ordering(t *testing.T) {
	// Blended score dominates, then raw lexical, then frequency,
	// then smaller ID wins.
	cands := []Candidate{
		{ID: "c", Score: 0.5, LexScore: 1, Frequency: 9},
		{ID: "a", Score: 0.9, LexScore: 1, Frequency: 0},
		{ID: "d", Score: 0.5, LexScore: 2, Frequency: 0},
		{ID: "b", Score: 0.5, LexScore: 1, Frequency: 9},
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].Less(cands[j]) })

	got := make([]string, len(cands))
	for i, c := range cands {
		got[i] = c.ID
	}
	assert.Equal(t, []string{"a", "d", "b", "c"}, got)
}

func TestCandidate_Less_Deterministic(t *testing.T) {
	a := Candidate{ID: "x", Score: 0.3}
	b := Candidate{ID: "y", Score: 0.3}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
