package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/protoguard/pkg/observability"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before rebuilding.
const DefaultDebounce = 250 * time.Millisecond

// Reload outcomes used as the "status" label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Watcher rebuilds the holder's snapshot when the manifest or proto files
// change, and optionally on a cron schedule. A failed rebuild keeps the
// previous snapshot.
type Watcher struct {
	holder   *Holder
	opts     Options
	debounce time.Duration
	schedule string
	logger   logrus.FieldLogger

	// reloadMu serializes rebuilds from file events and the schedule.
	reloadMu sync.Mutex

	mu       sync.Mutex
	onReload []func(*Snapshot)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay for file events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithSchedule also rebuilds on a cron spec such as "@every 5m".
func WithSchedule(spec string) WatcherOption {
	return func(w *Watcher) { w.schedule = spec }
}

// NewWatcher creates a watcher for holder. opts are reused for each rebuild.
func NewWatcher(holder *Holder, opts Options, wopts ...WatcherOption) *Watcher {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	w := &Watcher{
		holder:   holder,
		opts:     opts,
		debounce: DefaultDebounce,
		logger:   opts.Logger,
	}
	for _, o := range wopts {
		o(w)
	}
	return w
}

// OnReload registers fn to run after every successful swap.
func (w *Watcher) OnReload(fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Reload rebuilds from the active snapshot's manifest path and swaps it in.
// Concurrent calls run one at a time.
func (w *Watcher) Reload(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	path := w.holder.Load().ManifestPath
	start := time.Now()

	next, err := Build(ctx, path, w.opts)
	if err != nil {
		w.record(StatusFailure)
		w.logger.WithError(err).WithField("manifest", path).Error("Reload failed, keeping previous rules")
		return err
	}

	w.holder.Store(next)
	w.record(StatusSuccess)
	w.logger.WithFields(logrus.Fields{
		"manifest":   path,
		"validators": next.Engine.Registry().Len(),
		"duration":   time.Since(start).String(),
	}).Info("Reloaded validation rules")

	w.mu.Lock()
	hooks := append([]func(*Snapshot){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(next)
	}
	return nil
}

func (w *Watcher) record(status string) {
	if w.opts.Metrics != nil {
		w.opts.Metrics.ReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range w.holder.Load().WatchRoots() {
		if err := addRecursive(watcher, root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	if w.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.schedule, func() {
			defer observability.RecoverPanic(w.logger, "scheduled reload")
			_ = w.Reload(ctx)
		}); err != nil {
			return fmt.Errorf("invalid reload schedule %q: %w", w.schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		w.logger.WithField("schedule", w.schedule).Info("Scheduled rule reloads")
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.WithField("roots", w.holder.Load().WatchRoots()).Info("Watching for rule changes")
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						w.logger.WithError(err).WithField("dir", event.Name).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			w.logger.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("Rule source changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			_ = w.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Ext(event.Name) {
	case ".proto", ".yaml", ".yml":
		return true
	}
	return false
}

// addRecursive adds root and all of its subdirectories.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
