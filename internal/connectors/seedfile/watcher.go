package seedfile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/helixbi/querypilot/internal/core/ports/driving"
	"github.com/helixbi/querypilot/internal/logger"
)

// defaultDebounce coalesces the write bursts editors produce when
// saving a file.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the seed file whenever it changes on disk. Adds are
// idempotent by ID, so a reload converges instead of duplicating.
type Watcher struct {
	ingest   driving.IngestDriver
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for the seed file at path. The parent
// directory is watched so the file can be replaced atomically
// (rename-over) without losing the watch.
func NewWatcher(ingest driving.IngestDriver, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		ingest:   ingest,
		path:     path,
		debounce: defaultDebounce,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine. It returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			logger.Debug("Seed: %s changed, reloading", w.path)
			if _, err := Load(ctx, w.ingest, w.path); err != nil {
				logger.Warn("Seed: reload failed: %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Seed: watch error: %v", err)
		}
	}
}
