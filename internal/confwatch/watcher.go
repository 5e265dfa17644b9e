// Package confwatch reports edits to the courier config file so the daemon
// can reload it without restarting.
package confwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the file must stay quiet before a reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches a single file. Its parent directory is watched rather
// than the file itself so that editors which save by rename are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
}

// New creates a watcher for path. The parent directory must exist.
func New(path string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		log:      log.With().Str("component", "confwatch").Str("path", abs).Logger(),
		watcher:  fw,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run calls reload once the file has been written and then left alone for
// the debounce interval. It blocks until ctx is canceled and releases the
// underlying watcher before returning. Run may be called only once.
func (w *Watcher) Run(ctx context.Context, reload func()) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	var changedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.log.Debug().Str("op", event.Op.String()).Msg("config file changed")
				changedAt = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-ticker.C:
			if changedAt.IsZero() || time.Since(changedAt) < w.debounce {
				continue
			}
			changedAt = time.Time{}
			w.log.Info().Msg("reloading config")
			reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
