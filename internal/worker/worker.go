// Package worker drains the work queue with a single consumer: extract,
// dispatch, then relocate the source file to its terminal directory.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paperflow/paperflow/internal/config"
	"github.com/paperflow/paperflow/internal/extract"
	"github.com/paperflow/paperflow/internal/queue"
)

// ActionDispatcher is the dispatch interface the worker depends on.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, actions []config.Action, result map[string]any, sourceFile string)
}

type Worker struct {
	queue        *queue.Queue
	extractor    extract.Extractor
	dispatcher   ActionDispatcher
	processedDir string
	errorDir     string
	log          *slog.Logger

	now func() time.Time
}

func New(q *queue.Queue, ex extract.Extractor, d ActionDispatcher, processedDir, errorDir string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:        q,
		extractor:    ex,
		dispatcher:   d,
		processedDir: processedDir,
		errorDir:     errorDir,
		log:          logger,
		now:          time.Now,
	}
}

// Run consumes items strictly sequentially until the queue is closed and
// drained. In-flight extraction is never cancelled mid-item; ctx only bounds
// individual network calls.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker.started")
	for {
		item, ok := w.queue.Pop()
		if !ok {
			w.log.Info("worker.stopped")
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	name := filepath.Base(item.Path)

	if _, err := os.Stat(item.Path); err != nil {
		w.log.Warn("worker.file_gone", "file", item.Path)
		return
	}

	w.log.Info("worker.processing", "file", name, "profile", item.Profile.Name)

	result, err := w.extractor.ProcessFile(ctx, item.Path, item.Profile)
	if err != nil {
		w.log.Error("worker.extraction_failed", "file", name, "error", err)
		w.moveToError(item.Path)
		return
	}

	// Provenance metadata travels with the result through every action.
	result["_source_file"] = name
	result["_profile"] = item.Profile.Name
	result["_timestamp"] = w.now().Format(time.RFC3339)

	w.dispatcher.Dispatch(ctx, item.Profile.Actions, result, item.Path)

	if dest, err := w.moveTo(w.processedDir, item.Path); err != nil {
		w.log.Error("worker.relocation_failed", "file", name, "error", err)
		w.moveToError(item.Path)
	} else {
		w.log.Info("worker.processed", "file", name, "dest", dest)
	}
}

func (w *Worker) moveToError(src string) {
	dest, err := w.moveTo(w.errorDir, src)
	if err != nil {
		// Terminal condition: the file stays where it is for manual cleanup.
		w.log.Error("worker.error_relocation_failed", "file", src, "error", err)
		return
	}
	w.log.Info("worker.moved_to_error", "file", src, "dest", dest)
}

// moveTo relocates src into dir, appending a unix-timestamp disambiguator to
// the stem when the destination name is taken.
func (w *Worker) moveTo(dir, src string) (string, error) {
	base := filepath.Base(src)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		stem := base[:len(base)-len(ext)]
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, w.now().Unix(), ext))
	}
	if err := moveFile(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// moveFile renames, falling back to copy+remove for cross-device moves.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return os.Remove(src)
}
