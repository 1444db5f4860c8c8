package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/dossier/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

var log = logger.With("watch")

// Op is the kind of change reported for a file.
type Op string

// Change kinds.
const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
)

// Event reports a file that settled after being created or written.
type Event struct {
	Path string
	Op   Op
}

type pendingChange struct {
	op   Op
	seen time.Time
}

// Watcher reports new and changed files in an inbox directory.
// Hidden files, directories and files rejected by the filter are ignored.
type Watcher struct {
	dir      string
	debounce time.Duration
	filter   func(path string) bool
	now      func() time.Time

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]pendingChange
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter restricts reported files to those for which accept returns true.
func WithFilter(accept func(path string) bool) WatcherOption {
	return func(w *Watcher) {
		w.filter = accept
	}
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		now:      time.Now,
		fsw:      fsw,
		pending:  make(map[string]pendingChange),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching and returns the event channel. The channel is
// closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	if err := w.fsw.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}

	events := make(chan Event, 32)
	go w.run(ctx, events)
	return events, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error: %v", err)

		case <-ticker.C:
			for _, ev := range w.settled() {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleFsEvent records a pending change and reports whether the event was kept.
func (w *Watcher) handleFsEvent(event fsnotify.Event) bool {
	path := event.Name
	if isHidden(filepath.Base(path)) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(w.pending, path)
		return false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreated
	case event.Has(fsnotify.Write):
		op = OpUpdated
	default:
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if w.filter != nil && !w.filter(path) {
		return false
	}

	if prev, ok := w.pending[path]; ok && prev.op == OpCreated {
		op = OpCreated
	}
	w.pending[path] = pendingChange{op: op, seen: w.now()}
	log.Debug("%s %s", op, path)
	return true
}

// settled removes and returns the changes quiet for at least the debounce period.
func (w *Watcher) settled() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var out []Event
	for path, change := range w.pending {
		if now.Sub(change.seen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		out = append(out, Event{Path: path, Op: change.op})
	}
	return out
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
