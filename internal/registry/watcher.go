package registry

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the directory must stay quiet before a
// change triggers a reload. Editors often write a file several times per
// save.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads a Registry when .cue files in its directory change.
type Watcher struct {
	reg      *Registry
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	running   bool
	lastEvent time.Time // zero when nothing is pending
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for reg's directory. It does nothing until
// Start.
func NewWatcher(reg *Registry, opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		reg:      reg,
		fs:       fs,
		debounce: DefaultDebounce,
		logger:   reg.logger.Named("watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fs.Add(w.reg.Dir()); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Info("watching definitions", zap.String("dir", w.reg.Dir()))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fs.Close(); err != nil {
		w.logger.Warn("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	interval := w.debounce / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-tick.C:
			w.reloadIfSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".cue" {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("definition file changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) reloadIfSettled() {
	w.mu.Lock()
	pending := !w.lastEvent.IsZero() && time.Since(w.lastEvent) >= w.debounce
	if pending {
		w.lastEvent = time.Time{}
	}
	w.mu.Unlock()

	if pending {
		// Reload logs its own failures and keeps the previous library.
		_ = w.reg.Reload()
	}
}
