package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/core/domain"
)

type fakeChatter struct {
	reply string
	err   error
	calls int
	last  struct {
		system string
		user   string
	}
}

func (f *fakeChatter) Chat(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.last.system = system
	f.last.user = user
	return f.reply, f.err
}

func (f *fakeChatter) ModelName() string            { return "fake" }
func (f *fakeChatter) Ping(_ context.Context) error { return nil }
func (f *fakeChatter) Close() error                 { return nil }

func TestParseLines(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{
			name:  "plain lines",
			reply: "销售额趋势\n销售收入分析\n",
			want:  []string{"销售额趋势", "销售收入分析"},
		},
		{
			name:  "numbered",
			reply: "1. revenue trend\n2) revenue by region\n",
			want:  []string{"revenue trend", "revenue by region"},
		},
		{
			name:  "bulleted with blanks",
			reply: "- first\n\n* second\n• third",
			want:  []string{"first", "second", "third"},
		},
		{
			name:  "duplicates removed",
			reply: "same\nsame\nother",
			want:  []string{"same", "other"},
		},
		{
			name:  "empty reply",
			reply: "  \n\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLines(tt.reply))
		})
	}
}

func TestExpandQueryCapsAndDropsEcho(t *testing.T) {
	chatter := &fakeChatter{reply: "销售\nA\nB\nC\nD"}
	c := NewClient(chatter, Config{MaxExpansions: 3})

	out, err := c.ExpandQuery(context.Background(), "销售")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, out, "echo of the query is dropped before capping")
}

func TestGenerateRelatedIncludesDomainHint(t *testing.T) {
	chatter := &fakeChatter{reply: "q1\nq2"}
	c := NewClient(chatter, Config{})

	out, err := c.GenerateRelated(context.Background(), "销售额", map[string]string{"domain": "retail"})
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, out)
	assert.Contains(t, chatter.last.user, "retail")
}

func TestRankPrefixCompletionsJSON(t *testing.T) {
	chatter := &fakeChatter{reply: `Here you go:
[{"text":"sales","score":0.9},{"text":"salary","score":0.4},{"text":"invented","score":1.0}]`}
	c := NewClient(chatter, Config{})

	out, err := c.RankPrefixCompletions(context.Background(), "show me the", "sal",
		[]string{"sales", "salary"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2, "texts outside the candidate set are discarded")
	assert.Equal(t, "sales", out[0].Text)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestRankPrefixCompletionsLineFallback(t *testing.T) {
	chatter := &fakeChatter{reply: "sales\nsalary"}
	c := NewClient(chatter, Config{})

	out, err := c.RankPrefixCompletions(context.Background(), "show me the", "sal",
		[]string{"sales", "salary"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "sales", out[0].Text)
	assert.Greater(t, out[0].Score, out[1].Score, "rank order implies descending scores")
}

func TestRankPrefixCompletionsNoCandidates(t *testing.T) {
	chatter := &fakeChatter{}
	c := NewClient(chatter, Config{})

	out, err := c.RankPrefixCompletions(context.Background(), "p", "t", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, chatter.calls, "no call without candidates")
}

func TestChatterErrorPropagates(t *testing.T) {
	chatter := &fakeChatter{err: errors.New("boom")}
	c := NewClient(chatter, Config{})

	_, err := c.ExpandQuery(context.Background(), "q")
	assert.Error(t, err)
}

func TestRateLimitExhaustion(t *testing.T) {
	chatter := &fakeChatter{reply: "a"}
	c := NewClient(chatter, Config{RatePerSec: 1})

	// Burst allows two immediate calls; the third must be throttled.
	_, err := c.ExpandQuery(context.Background(), "q")
	require.NoError(t, err)
	_, err = c.ExpandQuery(context.Background(), "q")
	require.NoError(t, err)
	_, err = c.ExpandQuery(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.3, clamp01(0.3))
}
