// Package watch bridges filesystem events to the work queue. It observes the
// watch directory (non-recursive), matches file names against profile
// patterns in declared order, and enqueues the first match.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/paperflow/paperflow/internal/config"
	"github.com/paperflow/paperflow/internal/queue"
)

// Watcher owns the fsnotify resource with an explicit start/stop lifecycle.
type Watcher struct {
	dir      string
	profiles []*config.Profile
	queue    *queue.Queue
	log      *slog.Logger

	fw   *fsnotify.Watcher
	done chan struct{}
}

func New(dir string, profiles []*config.Profile, q *queue.Queue, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		profiles: profiles,
		queue:    q,
		log:      logger,
	}
}

// Start begins watching. The event loop runs on its own goroutine; enqueueing
// from it is safe because the queue synchronizes the hand-off to the worker.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fw = fw
	w.done = make(chan struct{})

	go w.run()
	w.log.Info("watch.started", "dir", w.dir)
	return nil
}

// Stop closes the watcher and waits for the event loop to exit. No further
// items are enqueued after Stop returns.
func (w *Watcher) Stop() {
	if w.fw == nil {
		return
	}
	_ = w.fw.Close()
	<-w.done
	w.log.Info("watch.stopped", "dir", w.dir)
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// Create covers both new files and files renamed into the
			// directory; the Rename op carries the vacated old path.
			if e.Op&fsnotify.Create == 0 {
				continue
			}
			w.handle(e.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("watch.error", "error", err)
		}
	}
}

func (w *Watcher) handle(path string) {
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return
	}

	name := filepath.Base(path)
	for _, p := range w.profiles {
		ok, err := filepath.Match(p.MatchPattern, name)
		if err != nil {
			w.log.Error("watch.bad_pattern", "profile", p.Name, "pattern", p.MatchPattern, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if w.queue.Push(queue.Item{Path: path, Profile: p}) {
			w.log.Info("watch.queued", "file", name, "profile", p.Name)
		}
		return
	}
	w.log.Debug("watch.ignored_unmatched", "file", name)
}
