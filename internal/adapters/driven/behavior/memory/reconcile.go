package memory

import (
	"context"
	"sync"
	"time"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure ReconcileLog implements the interface.
var _ driven.ReconcileLog = (*ReconcileLog)(nil)

// ReconcileLog is an in-memory implementation of driven.ReconcileLog.
type ReconcileLog struct {
	mu      sync.Mutex
	nextID  int64
	entries []driven.ReconcileEntry
}

// NewReconcileLog creates an empty reconcile log.
func NewReconcileLog() *ReconcileLog {
	return &ReconcileLog{nextID: 1}
}

// Record appends one half-failure entry.
func (l *ReconcileLog) Record(_ context.Context, entry driven.ReconcileEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = l.nextID
	l.nextID++
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Pending returns unresolved entries, oldest first.
func (l *ReconcileLog) Pending(_ context.Context, limit int) ([]driven.ReconcileEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]driven.ReconcileEntry, len(l.entries))
	copy(out, l.entries)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Resolve marks an entry repaired.
func (l *ReconcileLog) Resolve(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, entry := range l.entries {
		if entry.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}
