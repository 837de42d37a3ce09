// Package memindex provides an in-memory lexical search engine over
// query documents. One search combines phrase-prefix, fuzzy, and
// keyword term matching with configurable boosts plus a logarithmic
// popularity term.
package memindex

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/segment"
)

// Ensure Index implements the interface.
var _ driven.SearchEngine = (*Index)(nil)

// Default scoring boosts.
const (
	DefaultPhraseBoost = 3.0
	DefaultFuzzyBoost  = 1.0
	DefaultTermBoost   = 5.0
)

// Config holds scoring weights for the index.
type Config struct {
	// PhraseBoost weights the phrase-prefix mode.
	PhraseBoost float64

	// FuzzyBoost weights the fuzzy token mode.
	FuzzyBoost float64

	// TermBoost weights exact keyword matches.
	TermBoost float64
}

// entry is one indexed document with its precomputed token sequence.
type entry struct {
	doc    domain.Document
	tokens []string
}

// Index is an in-memory implementation of driven.SearchEngine.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]*entry
	byText map[string]string // exact text -> id

	// firstToken maps a document's leading token to candidate IDs,
	// narrowing the phrase-prefix scan.
	firstToken map[string]map[string]struct{}

	// keyword maps a normalized keyword to the IDs carrying it.
	keyword map[string]map[string]struct{}

	phraseBoost float64
	fuzzyBoost  float64
	termBoost   float64
}

// New creates an empty index with the given scoring config.
func New(cfg Config) *Index {
	if cfg.PhraseBoost == 0 {
		cfg.PhraseBoost = DefaultPhraseBoost
	}
	if cfg.FuzzyBoost == 0 {
		cfg.FuzzyBoost = DefaultFuzzyBoost
	}
	if cfg.TermBoost == 0 {
		cfg.TermBoost = DefaultTermBoost
	}

	return &Index{
		docs:        make(map[string]*entry),
		byText:      make(map[string]string),
		firstToken:  make(map[string]map[string]struct{}),
		keyword:     make(map[string]map[string]struct{}),
		phraseBoost: cfg.PhraseBoost,
		fuzzyBoost:  cfg.FuzzyBoost,
		termBoost:   cfg.TermBoost,
	}
}

// Index adds or updates a document.
func (ix *Index) Index(_ context.Context, doc domain.Document) error {
	if doc.ID == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Replacing an existing document keeps its creation time and
	// frequency counter unless the caller supplied larger values.
	if prev, ok := ix.docs[doc.ID]; ok {
		ix.unlink(prev)
		doc.CreatedAt = prev.doc.CreatedAt
		if prev.doc.Frequency > doc.Frequency {
			doc.Frequency = prev.doc.Frequency
		}
	}

	e := &entry{doc: doc, tokens: normalizedTokens(doc.Text)}
	ix.docs[doc.ID] = e
	ix.byText[doc.Text] = doc.ID
	ix.link(e)

	return nil
}

// link adds the entry to the posting maps. Caller holds the lock.
func (ix *Index) link(e *entry) {
	if len(e.tokens) > 0 {
		first := e.tokens[0]
		if ix.firstToken[first] == nil {
			ix.firstToken[first] = make(map[string]struct{})
		}
		ix.firstToken[first][e.doc.ID] = struct{}{}
	}
	for _, kw := range e.doc.Keywords {
		kw = segment.Normalize(kw)
		if kw == "" {
			continue
		}
		if ix.keyword[kw] == nil {
			ix.keyword[kw] = make(map[string]struct{})
		}
		ix.keyword[kw][e.doc.ID] = struct{}{}
	}
}

// unlink removes the entry from the posting maps. Caller holds the lock.
func (ix *Index) unlink(e *entry) {
	if len(e.tokens) > 0 {
		delete(ix.firstToken[e.tokens[0]], e.doc.ID)
	}
	for _, kw := range e.doc.Keywords {
		delete(ix.keyword[segment.Normalize(kw)], e.doc.ID)
	}
	delete(ix.byText, e.doc.Text)
}

// Delete removes a document from the index.
func (ix *Index) Delete(_ context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	ix.unlink(e)
	delete(ix.docs, id)
	return nil
}

// Search runs the combined lexical query.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qTokens := normalizedTokens(query)
	if len(qTokens) == 0 || limit <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scores := make(map[string]float64)

	// Phrase-prefix mode.
	for id, n := range ix.phraseMatches(qTokens) {
		scores[id] += float64(n) * ix.phraseBoost
	}

	// Fuzzy whole-token mode.
	for id, n := range ix.fuzzyMatches(qTokens) {
		scores[id] += float64(n) * ix.fuzzyBoost
	}

	// Exact keyword term mode.
	for id, n := range ix.termMatches(qTokens) {
		scores[id] += float64(n) * ix.termBoost
	}

	hits := make([]driven.SearchHit, 0, len(scores))
	for id, score := range scores {
		e := ix.docs[id]
		hits = append(hits, driven.SearchHit{
			Document: e.doc,
			Score:    score + math.Log1p(float64(e.doc.Frequency)),
		})
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchPrefix runs the phrase-prefix mode alone.
func (ix *Index) SearchPrefix(ctx context.Context, prefix string, limit int) ([]driven.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qTokens := normalizedTokens(prefix)
	if len(qTokens) == 0 || limit <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := ix.phraseMatches(qTokens)
	hits := make([]driven.SearchHit, 0, len(matches))
	for id, n := range matches {
		e := ix.docs[id]
		hits = append(hits, driven.SearchHit{
			Document: e.doc,
			Score:    float64(n)*ix.phraseBoost + math.Log1p(float64(e.doc.Frequency)),
		})
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// phraseMatches returns IDs whose token sequence starts with the
// query tokens in order, mapped to the matched token count. The final
// query token may be a partial prefix of the corresponding document
// token ("sal" matches "sales"). Caller holds the read lock.
func (ix *Index) phraseMatches(qTokens []string) map[string]int {
	matches := make(map[string]int)

	// Candidates share the first token, or have a first token the
	// single-token query prefixes.
	candidates := make(map[string]struct{})
	for id := range ix.firstToken[qTokens[0]] {
		candidates[id] = struct{}{}
	}
	if len(qTokens) == 1 {
		for tok, ids := range ix.firstToken {
			if strings.HasPrefix(tok, qTokens[0]) {
				for id := range ids {
					candidates[id] = struct{}{}
				}
			}
		}
	}

	for id := range candidates {
		e := ix.docs[id]
		if matchesPhrasePrefix(e.tokens, qTokens) {
			matches[id] = len(qTokens)
		}
	}
	return matches
}

// matchesPhrasePrefix reports whether docTokens begins with qTokens
// in order, allowing the last query token to be a prefix of its
// counterpart.
func matchesPhrasePrefix(docTokens, qTokens []string) bool {
	if len(qTokens) > len(docTokens) {
		return false
	}
	for i, qt := range qTokens {
		if i == len(qTokens)-1 {
			return strings.HasPrefix(docTokens[i], qt)
		}
		if docTokens[i] != qt {
			return false
		}
	}
	return true
}

// fuzzyMatches returns IDs with at least one document token within
// the allowed edit distance of a query token, mapped to the count of
// matched query tokens. Tolerance scales with token length so that
// short tokens (including CJK unigrams) require exact matches: 0
// edits under 3 runes, 1 edit up to 5, 2 beyond. Exact token hits
// count too so mid-phrase matches surface. Caller holds the read lock.
func (ix *Index) fuzzyMatches(qTokens []string) map[string]int {
	matches := make(map[string]int)
	for id, e := range ix.docs {
		n := 0
		for _, qt := range qTokens {
			allowed := allowedEdits(qt)
			for _, dt := range e.tokens {
				if withinEditDistance(qt, dt, allowed) {
					n++
					break
				}
			}
		}
		if n > 0 {
			matches[id] = n
		}
	}
	return matches
}

// allowedEdits returns the fuzzy tolerance for a token of the given
// length.
func allowedEdits(token string) int {
	switch n := len([]rune(token)); {
	case n < 3:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// termMatches returns IDs whose keyword set intersects the query
// tokens, mapped to the intersection size. Caller holds the read lock.
func (ix *Index) termMatches(qTokens []string) map[string]int {
	matches := make(map[string]int)
	for _, qt := range qTokens {
		for id := range ix.keyword[qt] {
			matches[id]++
		}
	}
	return matches
}

// Get returns the document with the given ID.
func (ix *Index) Get(_ context.Context, id string) (*domain.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := e.doc
	return &doc, nil
}

// FindByText returns the document whose text matches exactly.
func (ix *Index) FindByText(_ context.Context, text string) (*domain.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	id, ok := ix.byText[text]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := ix.docs[id].doc
	return &doc, nil
}

// IncrementFrequency adds delta to the document's selection counter.
func (ix *Index) IncrementFrequency(_ context.Context, id string, delta int64) error {
	if delta < 0 {
		return domain.ErrInvalidInput
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.doc.Frequency += delta
	e.doc.UpdatedAt = time.Now().UTC()
	return nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs), nil
}

// Ping validates the engine is reachable.
func (ix *Index) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// sortHits orders hits by descending score, then descending
// frequency, then ascending ID.
func sortHits(hits []driven.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Document.Frequency != hits[j].Document.Frequency {
			return hits[i].Document.Frequency > hits[j].Document.Frequency
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
}

// normalizedTokens tokenizes and case-folds text.
func normalizedTokens(text string) []string {
	fields := segment.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := segment.Normalize(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// withinEditDistance reports whether the Levenshtein distance between
// a and b is at most max, with an early length-difference cutoff.
func withinEditDistance(a, b string, max int) bool {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > max {
		return false
	}
	if a == b {
		return true
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)] <= max
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
