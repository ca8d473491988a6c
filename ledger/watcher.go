/*
watcher.go - Out-of-band tamper detection on the ledger file

PURPOSE:
  The store is the only legitimate writer, and it only ever grows the file.
  Anything else touching the file (truncation, rewrite, rename, removal) is
  a tamper signal worth alerting on immediately rather than waiting for the
  next integrity audit.

  Detection here is ADVISORY. Filesystem events are lossy and an attacker
  with host access can suppress them; VerifyIntegrity over the hash chain
  remains the proof. The watcher exists to shorten time-to-alarm.

DETECTION RULES:
  - Remove/Rename of the ledger file        -> alert
  - Write/Create leaving the file SMALLER
    than the store's last known size        -> alert (legitimate appends only grow it)

SEE ALSO:
  - file.go: ExpectedSize bookkeeping
  - api/scheduler.go: The periodic full audit
*/
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/veritrail/ledger-engine/metrics"
)

// Watcher raises tamper alerts when the ledger file changes out-of-band.
type Watcher struct {
	store   *FileStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	fsw  *fsnotify.Watcher
	stop chan struct{}
	wg   sync.WaitGroup

	// onAlert, when set, is invoked for every alert. For tests.
	onAlert func(reason string)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the structured logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithWatcherMetrics attaches tamper alert instrumentation.
func WithWatcherMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) { w.metrics = m }
}

// WithAlertFunc registers a callback invoked on every alert.
func WithAlertFunc(fn func(reason string)) WatcherOption {
	return func(w *Watcher) { w.onAlert = fn }
}

// NewWatcher creates a watcher for the store's ledger file.
func NewWatcher(store *FileStore, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		store:  store,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create ledger watcher: %w", err)
	}
	// Watch the parent directory: events for rename/remove of the file
	// itself are only reliably delivered on the directory watch.
	if err := fsw.Add(filepath.Dir(store.Path())); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch ledger directory: %w", err)
	}
	w.fsw = fsw
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("ledger tamper watcher started", "path", w.store.Path())
}

// Stop stops the watcher and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
	w.wg.Wait()
	w.logger.Info("ledger tamper watcher stopped")
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ledger watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Name != w.store.Path() {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.alert("ledger file removed or renamed")

	case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create):
		info, err := os.Stat(w.store.Path())
		if err != nil {
			w.alert("ledger file unreadable after modification")
			return
		}
		if info.Size() < w.store.ExpectedSize() {
			w.alert("ledger file shrank")
		}
	}
}

func (w *Watcher) alert(reason string) {
	w.logger.Error("ledger tamper alert", "reason", reason, "path", w.store.Path())
	w.metrics.TamperAlert()
	if w.onAlert != nil {
		w.onAlert(reason)
	}
}
