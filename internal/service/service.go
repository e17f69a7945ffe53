// Package service is the alignment engine's entry point. It turns provider
// payloads into timing documents, keeps them in the document cache and
// drives highlighting for the active document.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kahncode1/narrasync/internal/cache"
	"github.com/kahncode1/narrasync/internal/markup"
	"github.com/kahncode1/narrasync/internal/watcher"
	"github.com/kahncode1/narrasync/internal/worker"
	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/chars"
	"github.com/kahncode1/narrasync/timing/collection"
	"github.com/kahncode1/narrasync/timing/sentence"
	tsync "github.com/kahncode1/narrasync/timing/sync"
)

// TimingService aligns, caches and serves timing documents.
type TimingService struct {
	cfg    timing.Config
	logger *log.Logger
	exec   worker.Executor
	cache  *cache.Manager
	dir    string

	// ownsCache is set when the service built its own cache and so must
	// close it.
	ownsCache bool

	inferencer  *sentence.Inferencer
	transformer *chars.Transformer
	renderer    *markup.Renderer

	mu       sync.RWMutex
	activeID string
	active   *collection.Collection
	emitter  *tsync.Emitter
}

// Option configures a TimingService.
type Option func(*TimingService)

// WithExecutor sets the executor alignment runs on. The default runs
// inline.
func WithExecutor(exec worker.Executor) Option {
	return func(s *TimingService) { s.exec = exec }
}

// WithCache sets the document cache. The caller keeps ownership and closes
// it. The default is a memory-only cache sized from the configuration.
func WithCache(m *cache.Manager) Option {
	return func(s *TimingService) { s.cache = m }
}

// WithDocumentsDir sets the directory Load reads documents from.
func WithDocumentsDir(dir string) Option {
	return func(s *TimingService) { s.dir = dir }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(s *TimingService) { s.logger = logger }
}

// New creates a service for cfg.
func New(cfg timing.Config, opts ...Option) *TimingService {
	s := &TimingService{
		cfg:    cfg,
		logger: log.Default(),
		exec:   worker.Inline{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewManager(cfg.Cache.MaxDocuments,
			cache.WithLogger(s.logger),
			cache.WithCollectionOptions(s.collectionOptions()...))
		s.ownsCache = true
	}

	s.inferencer = sentence.NewInferencer(sentence.OptionsFromConfig(cfg.Sentence), s.logger)
	s.transformer = chars.NewTransformer(cfg.Chars.LastCharDuration)
	s.renderer = markup.NewRenderer()
	return s
}

// Config returns the configuration the service was built with.
func (s *TimingService) Config() timing.Config {
	return s.cfg
}

// Cache returns the document cache.
func (s *TimingService) Cache() *cache.Manager {
	return s.cache
}

func (s *TimingService) collectionOptions() []collection.Option {
	return []collection.Option{collection.WithSeekDebounce(s.cfg.Collection.SeekDebounce)}
}

// NewCollection wraps doc with the configured query options.
func (s *TimingService) NewCollection(doc *timing.Document) *collection.Collection {
	return collection.New(doc, s.collectionOptions()...)
}

// Load returns the collection for id, reading and aligning it from the
// documents directory on a cache miss.
func (s *TimingService) Load(ctx context.Context, id string) (*collection.Collection, error) {
	var c *collection.Collection
	err := s.exec.Run(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.load(ctx, id)
		return err
	})
	return c, err
}

func (s *TimingService) load(ctx context.Context, id string) (*collection.Collection, error) {
	c, err := s.cache.Get(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, timing.ErrCacheMiss) {
		return nil, err
	}
	if s.dir == "" {
		return nil, err
	}

	req, err := s.readRequest(id)
	if err != nil {
		return nil, err
	}
	res, err := s.align(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("align %s: %w", id, err)
	}

	c = s.NewCollection(res.Document)
	if err := s.cache.Put(ctx, id, c); err != nil {
		// The collection is still usable; it just is not persisted.
		s.logger.Warn("failed to cache document", "id", id, "error", err)
	}
	return c, nil
}

// readRequest reads <id>.json and, when present, <id>.md or <id>.txt as
// the display text.
func (s *TimingService) readRequest(id string) (Request, error) {
	if id == "" || id != filepath.Base(id) {
		return Request{}, fmt.Errorf("%w: %q", cache.ErrInvalidKey, id)
	}

	path := filepath.Join(s.dir, id+".json")
	payload, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Request{}, fmt.Errorf("%w: %s", timing.ErrCacheMiss, id)
	}
	if err != nil {
		return Request{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	req := Request{Source: filepath.Base(path), Payload: payload}
	if md, err := os.ReadFile(filepath.Join(s.dir, id+".md")); err == nil {
		req.Markdown = md
	} else if txt, err := os.ReadFile(filepath.Join(s.dir, id+".txt")); err == nil {
		req.Text = string(txt)
	}
	return req, nil
}

// Prefetch loads ids concurrently on the executor.
func (s *TimingService) Prefetch(ctx context.Context, ids ...string) error {
	tasks := make([]worker.Task, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func(ctx context.Context) error {
			_, err := s.load(ctx, id)
			return err
		}
	}
	return s.exec.RunAll(ctx, tasks...)
}

// Activate makes id the document being narrated. The previously active
// collection stays cached, and its locality cursor is cleared so that
// returning to it later starts from a clean search.
func (s *TimingService) Activate(ctx context.Context, id string) (*collection.Collection, error) {
	c, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.active
	s.activeID, s.active = id, c
	emitter := s.emitter
	s.mu.Unlock()

	if prev != nil && prev != c {
		prev.ResetLocality()
	}
	if emitter != nil {
		emitter.SetLocator(c)
	}
	s.logger.Debug("activated document", "id", id, "words", c.WordCount())
	return c, nil
}

// Active returns the active document id and collection.
func (s *TimingService) Active() (string, *collection.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.active, s.active != nil
}

// Seek tells the active collection that playback jumped. It reports
// whether the reset took effect; resets closer together than the seek
// debounce are ignored.
func (s *TimingService) Seek() bool {
	_, c, ok := s.Active()
	if !ok {
		return false
	}
	return c.ResetLocality()
}

// Follow starts pushing highlight pairs for the active document, sampled
// from source. The emitter follows later Activate calls.
func (s *TimingService) Follow(ctx context.Context, source timing.PositionSource) (*tsync.Emitter, error) {
	s.mu.Lock()
	if s.emitter == nil {
		s.emitter = tsync.NewEmitter(nil, s.cfg.Emitter, s.logger)
	}
	emitter := s.emitter
	active := s.active
	s.mu.Unlock()

	if active != nil {
		emitter.SetLocator(active)
	}
	if emitter.IsRunning() {
		emitter.Stop()
	}
	if err := emitter.Start(ctx, source); err != nil {
		return nil, err
	}
	return emitter, nil
}

// Invalidate drops id from every cache tier. An active document keeps
// serving its current collection until it is activated again.
func (s *TimingService) Invalidate(id string) error {
	if err := s.cache.Invalidate(id); err != nil {
		return fmt.Errorf("invalidate %s: %w", id, err)
	}
	s.logger.Debug("invalidated document", "id", id)
	return nil
}

// InvalidateOn invalidates documents as change events arrive, until ctx is
// done or events is closed.
func (s *TimingService) InvalidateOn(ctx context.Context, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.Invalidate(ev.ID); err != nil {
				s.logger.Warn("failed to invalidate changed document", "id", ev.ID, "error", err)
			}
		}
	}
}

// Close stops highlighting, and closes the cache when the service created
// it.
func (s *TimingService) Close() error {
	s.mu.Lock()
	emitter := s.emitter
	s.emitter = nil
	s.mu.Unlock()

	var errs []error
	if emitter != nil {
		errs = append(errs, emitter.Close())
	}
	if s.ownsCache {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}
