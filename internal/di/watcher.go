package di

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/samber/do/v2"

	"github.com/kahncode1/narrasync/internal/watcher"
)

// WatcherHandle wraps the documents watcher with shutdown capability.
// Watcher is nil when watching is off.
type WatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideWatcher starts invalidating cached documents when their files
// change.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	opts := do.MustInvoke[*Options](i)
	if !opts.Watch || opts.DocumentsDir == "" {
		return &WatcherHandle{}, nil
	}
	logger := do.MustInvoke[*log.Logger](i)
	svc := do.MustInvoke[*TimingServiceHandle](i)

	w, err := watcher.New(opts.DocumentsDir, logger, watcher.Options{})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Start(ctx); err != nil {
			logger.Error("documents watcher stopped", "error", err)
		}
	}()
	go svc.InvalidateOn(ctx, w.Events())

	logger.Info("watching documents for changes", "dir", opts.DocumentsDir)
	return &WatcherHandle{Watcher: w, cancel: cancel}, nil
}
