// Package oracle adapts a chat-completion model into the narrow
// semantic oracle used for query expansion, related-query generation,
// and prefix-tail ranking. Provider subpackages supply the transport;
// this package owns the prompts, rate limiting, and reply parsing.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.OracleClient = (*Client)(nil)

// Chatter is the transport contract a provider subpackage implements.
type Chatter interface {
	// Chat sends one system+user exchange and returns the raw reply.
	Chat(ctx context.Context, system, user string) (string, error)

	// ModelName returns the underlying model identifier.
	ModelName() string

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Default configuration values.
const (
	DefaultTimeout       = time.Second
	DefaultMaxExpansions = 3
	DefaultMaxRelated    = 5
	DefaultRatePerSec    = 5
)

// Config holds oracle client settings.
type Config struct {
	// Timeout bounds each oracle call (default 1s).
	Timeout time.Duration

	// MaxExpansions caps ExpandQuery results (default 3).
	MaxExpansions int

	// MaxRelated caps GenerateRelated results (default 5).
	MaxRelated int

	// RatePerSec throttles outbound calls (default 5/s). Zero or
	// negative disables throttling.
	RatePerSec float64
}

// Client wraps a Chatter with prompts and parsing.
type Client struct {
	chatter Chatter
	cfg     Config
	limiter *rate.Limiter
}

// NewClient creates an oracle client over the given transport.
func NewClient(chatter Chatter, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxExpansions <= 0 {
		cfg.MaxExpansions = DefaultMaxExpansions
	}
	if cfg.MaxRelated <= 0 {
		cfg.MaxRelated = DefaultMaxRelated
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), int(cfg.RatePerSec)+1)
	}

	return &Client{chatter: chatter, cfg: cfg, limiter: limiter}
}

const expandSystemPrompt = `You rewrite business-intelligence queries.
Given a user query, produce short semantic paraphrases a BI system
could also search for. Reply with one paraphrase per line, best first,
no numbering and no extra text.`

const relatedSystemPrompt = `You suggest follow-up business-intelligence
queries. Given a query a user just ran, list queries the user is likely
to ask next. Reply with one query per line, best first, no numbering
and no extra text.`

const completionSystemPrompt = `You rank completions of a partially
typed query. The user has typed a stable prefix plus an incomplete
final term. Rank the candidate completions of that final term by how
well they fit the prefix. Reply with a JSON array of objects with
fields "text" and "score", score in [0,1], best first. No extra text.`

// ExpandQuery returns semantic paraphrases of the query.
func (c *Client) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	user := fmt.Sprintf("Query: %s\nParaphrases (max %d):", query, c.cfg.MaxExpansions)

	reply, err := c.chat(ctx, expandSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	lines := parseLines(reply)
	lines = dropEqual(lines, query)
	if len(lines) > c.cfg.MaxExpansions {
		lines = lines[:c.cfg.MaxExpansions]
	}
	return lines, nil
}

// GenerateRelated returns likely follow-up queries.
func (c *Client) GenerateRelated(ctx context.Context, query string, qctx map[string]string) ([]string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query just run: %s\n", query)
	if domainHint := qctx["domain"]; domainHint != "" {
		fmt.Fprintf(&sb, "Business domain: %s\n", domainHint)
	}
	fmt.Fprintf(&sb, "Follow-up queries (max %d):", c.cfg.MaxRelated)

	reply, err := c.chat(ctx, relatedSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	lines := parseLines(reply)
	lines = dropEqual(lines, query)
	if len(lines) > c.cfg.MaxRelated {
		lines = lines[:c.cfg.MaxRelated]
	}
	return lines, nil
}

// RankPrefixCompletions orders candidate tail completions.
func (c *Client) RankPrefixCompletions(ctx context.Context, prefix, tail string, candidates []string, qctx map[string]string) ([]driven.RankedCompletion, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stable prefix: %s\n", prefix)
	fmt.Fprintf(&sb, "Incomplete term: %s\n", tail)
	if domainHint := qctx["domain"]; domainHint != "" {
		fmt.Fprintf(&sb, "Business domain: %s\n", domainHint)
	}
	sb.WriteString("Candidates:\n")
	for _, cand := range candidates {
		fmt.Fprintf(&sb, "- %s\n", cand)
	}

	reply, err := c.chat(ctx, completionSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	ranked := parseCompletions(reply)

	// Replies may invent texts; keep only known candidates.
	allowed := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		allowed[cand] = true
	}
	out := ranked[:0]
	for _, rc := range ranked {
		if allowed[rc.Text] {
			out = append(out, rc)
		}
	}
	return out, nil
}

// Available reports whether the oracle is usable.
func (c *Client) Available() bool {
	return c.chatter != nil
}

// ModelName returns the underlying model identifier.
func (c *Client) ModelName() string {
	return c.chatter.ModelName()
}

// Ping validates the provider is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.chatter.Ping(ctx)
}

// Close releases resources.
func (c *Client) Close() error {
	return c.chatter.Close()
}

// chat applies the rate limit and per-call timeout around one exchange.
func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return "", fmt.Errorf("oracle rate limit exceeded: %w", domain.ErrOracleUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reply, err := c.chatter.Chat(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("oracle call failed: %w", err)
	}
	return reply, nil
}

// parseLines splits a reply into trimmed non-empty lines, stripping
// the numbering and bullets models add despite instructions.
func parseLines(reply string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(reply, "\n") {
		line = stripListMarker(strings.TrimSpace(line))
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}

// stripListMarker removes a leading "1.", "1)", "-", "*", or "•".
func stripListMarker(line string) string {
	trimmed := strings.TrimLeft(line, "-*•")
	if trimmed != line {
		return strings.TrimSpace(trimmed)
	}

	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

// dropEqual removes entries equal to the original query after
// normalisation-free comparison.
func dropEqual(lines []string, query string) []string {
	out := lines[:0]
	for _, line := range lines {
		if !strings.EqualFold(line, query) {
			out = append(out, line)
		}
	}
	return out
}

// parseCompletions decodes the ranked-completion reply. The primary
// format is a JSON array; plain lines fall back to rank-derived scores.
func parseCompletions(reply string) []driven.RankedCompletion {
	var decoded []struct {
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	}

	if raw := extractJSONArray(reply); raw != "" {
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out := make([]driven.RankedCompletion, 0, len(decoded))
			for _, d := range decoded {
				if d.Text == "" {
					continue
				}
				out = append(out, driven.RankedCompletion{
					Text:  d.Text,
					Score: clamp01(d.Score),
				})
			}
			if len(out) > 0 {
				return out
			}
		}
	}

	lines := parseLines(reply)
	out := make([]driven.RankedCompletion, 0, len(lines))
	for i, line := range lines {
		out = append(out, driven.RankedCompletion{
			Text:  line,
			Score: 1.0 / float64(i+1),
		})
	}
	return out
}

// extractJSONArray returns the outermost [...] span, tolerating prose
// or code fences around it.
func extractJSONArray(reply string) string {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
