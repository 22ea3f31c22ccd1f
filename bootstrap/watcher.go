package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sarchlab/minstrel/instrumentation"
)

const debounceDefault = 200 * time.Millisecond

// A Watcher adds the targets that appear in a configuration file while the
// program runs. Targets removed from the file stay wrapped.
type Watcher struct {
	path     string
	inst     *instrumentation.Instrument
	logger   *slog.Logger
	debounce time.Duration

	lock  sync.Mutex
	known map[string]bool
}

// NewWatcher creates a Watcher for the configuration file at path. The
// targets in known are already wrapped.
func NewWatcher(
	path string,
	inst *instrumentation.Instrument,
	known []string,
) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		inst:     inst,
		logger:   slog.Default(),
		debounce: debounceDefault,
		known:    make(map[string]bool),
	}

	for _, t := range known {
		w.known[t] = true
	}

	return w
}

// WithLogger sets the diagnostic logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// WithDebounce sets how long the file must stay unchanged before it is read.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches the file until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(evt.Name) != w.path {
				continue
			}

			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("config watcher error", "error", err)

		case <-timer.C:
			if err := w.Reload(); err != nil {
				w.logger.Error("reloading config failed",
					"path", w.path, "error", err)
			}
		}
	}
}

// Reload reads the file, wraps the targets that are new and retries the
// pending ones. A target that fails to wrap is tried again on the next
// reload.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	var added []string
	for _, t := range cfg.Targets {
		if !w.known[t] {
			added = append(added, t)
		}
	}

	var errs []error
	if len(added) > 0 {
		w.logger.Info("adding targets", "targets", added)

		for _, t := range added {
			if err := AddTargets(w.inst, []string{t}); err != nil {
				errs = append(errs, err)
				continue
			}

			w.known[t] = true
		}
	}

	errs = append(errs, w.inst.RetryAll())

	return errors.Join(errs...)
}
