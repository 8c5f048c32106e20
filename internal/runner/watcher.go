package runner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"pagelens/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// BundleWatcher watches a telemetry bundle file and re-runs analysis when it
// changes. Rapid successive writes are debounced.
type BundleWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	runner      *Runner
	path        string
	debounceDur time.Duration
	lastEvent   time.Time
	onReport    func(*Report, error)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewBundleWatcher creates a watcher for the given bundle path. onReport is
// invoked after every triggered analysis, including failed ones.
func NewBundleWatcher(r *Runner, path string, onReport func(*Report, error)) (*BundleWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &BundleWatcher{
		watcher:     watcher,
		runner:      r,
		path:        filepath.Clean(path),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		onReport:    onReport,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine.
// The bundle is analyzed once immediately so watch mode always reports
// current state.
func (w *BundleWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the parent directory: editors and atomic writers replace the
	// file, which would drop a direct file watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	logging.Watch("watching %s", w.path)

	w.rerun(ctx)
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *BundleWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *BundleWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			if now.Sub(w.lastEvent) < w.debounceDur {
				w.mu.Unlock()
				continue
			}
			w.lastEvent = now
			w.mu.Unlock()

			logging.Watch("bundle changed: %s", event.Name)
			w.rerun(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Warn("watch error: %v", err)
		}
	}
}

func (w *BundleWatcher) rerun(ctx context.Context) {
	report, err := w.runner.AnalyzeFile(ctx, w.path)
	if err != nil {
		logging.Get(logging.CategoryWatch).Error("analysis failed: %v", err)
	}
	if w.onReport != nil {
		w.onReport(report, err)
	}
}
