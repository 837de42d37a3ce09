// Package metrics provides a process-wide registry of named atomic
// counters. Degradations and swallowed errors are counted here and
// surfaced through GET /stats and the logs.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter names used across the service.
const (
	LexicalDegraded   = "lexical_degraded"
	VectorDegraded    = "vector_degraded"
	EmbedFailures     = "embed_failures"
	OracleFailures    = "oracle_failures"
	BehaviorFailures  = "behavior_failures"
	ReconcileRecorded = "reconcile_recorded"
	PrefixFallbacks   = "prefix_fallbacks"
	RequestsSuggest   = "requests_suggest"
	RequestsSimilar   = "requests_similar"
	RequestsRelated   = "requests_related"
	RequestsFeedback  = "requests_feedback"
	EmbedCacheHits    = "embed_cache_hits"
	EmbedCacheMisses  = "embed_cache_misses"
	SwallowedErrors   = "swallowed_errors"
)

var counters sync.Map // name -> *atomic.Int64

func counter(name string) *atomic.Int64 {
	if c, ok := counters.Load(name); ok {
		return c.(*atomic.Int64)
	}
	c, _ := counters.LoadOrStore(name, new(atomic.Int64))
	return c.(*atomic.Int64)
}

// Inc adds one to the named counter.
func Inc(name string) {
	counter(name).Add(1)
}

// Add adds n to the named counter.
func Add(name string, n int64) {
	counter(name).Add(n)
}

// Get returns the current value of the named counter.
func Get(name string) int64 {
	return counter(name).Load()
}

// Snapshot returns every counter, keyed by name.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Names returns the registered counter names sorted for stable output.
func Names() []string {
	var names []string
	counters.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Reset zeroes every counter. Intended for tests.
func Reset() {
	counters.Range(func(_, v any) bool {
		v.(*atomic.Int64).Store(0)
		return true
	})
}
