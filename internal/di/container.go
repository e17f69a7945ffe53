// Package di wires the alignment engine together.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/samber/do/v2"

	"github.com/kahncode1/narrasync/internal/cache"
	"github.com/kahncode1/narrasync/internal/service"
	"github.com/kahncode1/narrasync/internal/store"
	"github.com/kahncode1/narrasync/internal/worker"
	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/collection"
)

// Options are the inputs of the container.
type Options struct {
	Config timing.Config
	Logger *log.Logger
	// DocumentsDir is where Load finds documents. Empty disables loading
	// from disk and watching.
	DocumentsDir string
	// Watch invalidates cached documents when their files change.
	Watch bool
}

// NewContainer creates and configures the DI container with all providers.
func NewContainer(opts Options) *do.RootScope {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, &opts)
	do.ProvideValue(injector, opts.Logger)
	do.Provide(injector, ProvideExecutor)

	// Storage layer
	do.Provide(injector, ProvideBlobStore)
	do.Provide(injector, ProvideCache)

	// Services
	do.Provide(injector, ProvideTimingService)
	do.Provide(injector, ProvideWatcher)

	return injector
}

// Bootstrap initializes every service and returns the timing service.
func Bootstrap(injector *do.RootScope) (*service.TimingService, error) {
	h, err := do.Invoke[*TimingServiceHandle](injector)
	if err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*WatcherHandle](injector); err != nil {
		return nil, err
	}
	return h.TimingService, nil
}

// Shutdown stops every service in reverse dependency order.
func Shutdown(injector *do.RootScope) error {
	report := injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("shutdown failed: %v", report.Errors)
	}
	return nil
}

// ProvideExecutor provides the executor alignment runs on.
func ProvideExecutor(i do.Injector) (worker.Executor, error) {
	opts := do.MustInvoke[*Options](i)
	return worker.New(opts.Config.Worker.Concurrency), nil
}

// BlobStoreHandle holds the configured L2 store. Store is nil for the
// memory backend. The cache manager closes the store.
type BlobStoreHandle struct {
	Store cache.BlobStore
}

// ProvideBlobStore opens the L2 store selected by cache.backend.
func ProvideBlobStore(i do.Injector) (*BlobStoreHandle, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*log.Logger](i)
	cfg := opts.Config.Cache

	switch cfg.Backend {
	case "memory":
		return &BlobStoreHandle{}, nil
	case "badger":
		path := filepath.Join(cfg.Dir, "badger")
		s, err := store.Open(path, store.Options{CompressionLevel: cfg.CompressionLevel}, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("document store opened", "backend", cfg.Backend, "path", path)
		return &BlobStoreHandle{Store: s}, nil
	case "disk", "":
		path := filepath.Join(cfg.Dir, "documents")
		ds, err := cache.NewDiskStore(path, 0, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		logger.Debug("document store opened", "backend", "disk", "path", path)
		return &BlobStoreHandle{Store: ds}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", timing.ErrInvalidConfig, cfg.Backend)
	}
}

// CacheHandle wraps the cache manager with shutdown capability.
type CacheHandle struct {
	*cache.Manager
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the two tier document cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*log.Logger](i)
	l2 := do.MustInvoke[*BlobStoreHandle](i)

	mopts := []cache.ManagerOption{
		cache.WithLogger(logger),
		cache.WithCollectionOptions(collection.WithSeekDebounce(opts.Config.Collection.SeekDebounce)),
	}
	if l2.Store != nil {
		mopts = append(mopts, cache.WithStore(l2.Store))
	}
	return &CacheHandle{Manager: cache.NewManager(opts.Config.Cache.MaxDocuments, mopts...)}, nil
}

// TimingServiceHandle wraps the timing service with shutdown capability.
type TimingServiceHandle struct {
	*service.TimingService
}

// Shutdown implements do.Shutdownable.
func (h *TimingServiceHandle) Shutdown() error {
	return h.Close()
}

// ProvideTimingService provides the timing service.
func ProvideTimingService(i do.Injector) (*TimingServiceHandle, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*log.Logger](i)
	exec := do.MustInvoke[worker.Executor](i)
	c := do.MustInvoke[*CacheHandle](i)

	svc := service.New(opts.Config,
		service.WithLogger(logger),
		service.WithExecutor(exec),
		service.WithCache(c.Manager),
		service.WithDocumentsDir(opts.DocumentsDir))

	logger.Debug("timing service ready",
		"documents", opts.DocumentsDir,
		"backend", opts.Config.Cache.Backend,
		"workers", exec.Size())
	return &TimingServiceHandle{TimingService: svc}, nil
}
