// Package watcher reports changes to documents in a directory so their
// cached timing can be invalidated.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Event reports that the document with ID changed on disk.
type Event struct {
	ID      string
	Path    string
	Removed bool
}

// Options configures the watcher.
type Options struct {
	// SettleDelay is how long a document must stay quiet before its change
	// is reported. Bursts of writes to one document become one event.
	SettleDelay time.Duration
	// Extensions lists the file extensions that name documents.
	Extensions []string
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.Extensions == nil {
		o.Extensions = []string{".json", ".md", ".txt"}
	}
}

// Watcher watches one documents directory.
type Watcher struct {
	logger *log.Logger
	opts   Options
	dir    string
	fs     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer // id -> settle timer
	stopped bool

	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

// New watches dir. A nil logger uses log.Default().
func New(dir string, logger *log.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if logger == nil {
		logger = log.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir = filepath.Clean(dir)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Debug("watching documents", "dir", dir)

	return &Watcher{
		logger:  logger,
		opts:    opts,
		dir:     dir,
		fs:      fw,
		pending: make(map[string]*time.Timer),
		events:  make(chan Event, 64),
		errors:  make(chan error, 8),
		done:    make(chan struct{}),
	}, nil
}

// Start processes file system events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		}
	}
}

// Events returns the channel of settled document changes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by the file system watcher.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher and closes both channels.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.stopped = true
		for _, t := range w.pending {
			t.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fs.Close()

		// Senders check stopped under mu, so nothing sends after this.
		close(w.events)
		close(w.errors)
	})
	return err
}

func (w *Watcher) report(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("dropping watcher error", "error", err)
	}
}

// IDFromPath returns the document id named by path, which is its base name
// without the extension.
func (w *Watcher) IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	ext := filepath.Ext(base)
	for _, want := range w.opts.Extensions {
		if strings.EqualFold(ext, want) {
			return strings.TrimSuffix(base, ext), true
		}
	}
	return "", false
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	id, ok := w.IDFromPath(ev.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, exists := w.pending[id]; exists {
		t.Stop()
	}
	path := ev.Name
	w.pending[id] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.settle(id, path)
	})
}

func (w *Watcher) settle(id, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	delete(w.pending, id)

	_, err := os.Stat(path)
	ev := Event{ID: id, Path: path, Removed: errors.Is(err, os.ErrNotExist)}
	w.logger.Debug("document changed", "id", id, "removed", ev.Removed)

	select {
	case w.events <- ev:
	case <-w.done:
	}
}
