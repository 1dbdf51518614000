// Package dispatch executes a profile's ordered action list against one
// extraction result. Fan-out is best-effort: a failed action is logged and the
// remaining actions still run.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/paperflow/paperflow/internal/calsync"
	"github.com/paperflow/paperflow/internal/config"
)

// CalendarSyncer is the calendar interface the dispatcher depends on.
type CalendarSyncer interface {
	SyncEvent(ctx context.Context, calendarName, date, summary, description string) bool
}

// SyncerFactory builds a calendar syncer for one action's server and
// credentials.
type SyncerFactory func(serverURL, username, password string) (CalendarSyncer, error)

type Dispatcher struct {
	log       *slog.Logger
	http      *http.Client
	newSyncer SyncerFactory
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		log:  logger,
		http: &http.Client{Timeout: 30 * time.Second},
		newSyncer: func(serverURL, username, password string) (CalendarSyncer, error) {
			backend, err := calsync.NewDAVBackend(serverURL, username, password)
			if err != nil {
				return nil, err
			}
			return calsync.NewManager(backend, logger), nil
		},
	}
}

// WithSyncerFactory overrides how calendar syncers are built; tests use it to
// substitute a fake.
func (d *Dispatcher) WithSyncerFactory(f SyncerFactory) *Dispatcher {
	d.newSyncer = f
	return d
}

// Dispatch runs every action in declared order. Nothing propagates: each
// failure is logged against its action and the loop continues.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []config.Action, result map[string]any, sourceFile string) {
	for _, a := range actions {
		var err error
		switch act := a.(type) {
		case *config.PersistJSON:
			err = d.persistJSON(act, result)
		case *config.NotifyWebhook:
			err = d.notifyWebhook(ctx, act, result)
		case *config.RelocateFile:
			err = d.relocateFile(act, result, sourceFile)
		case *config.SyncCalendar:
			err = d.syncCalendar(ctx, act, result, sourceFile)
		default:
			err = fmt.Errorf("unhandled action kind %q", a.Kind())
		}
		if err != nil {
			d.log.Error("dispatch.action_failed", "action", a.Kind(), "source", sourceFile, "error", err)
		}
	}
}

// persistJSON appends the result to a JSON array file, rewriting the whole
// file. A corrupt target resets to empty; a bare object target is coerced
// into a one-element list for backward compatibility.
func (d *Dispatcher) persistJSON(act *config.PersistJSON, result map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(act.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	var entries []any
	if data, err := os.ReadFile(act.Path); err == nil && len(bytes.TrimSpace(data)) > 0 {
		var loaded any
		if uerr := json.Unmarshal(data, &loaded); uerr != nil {
			d.log.Warn("dispatch.persist_reset_corrupt_target", "path", act.Path, "error", uerr)
		} else if list, ok := loaded.([]any); ok {
			entries = list
		} else {
			entries = []any{loaded}
		}
	}
	entries = append(entries, result)

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := os.WriteFile(act.Path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", act.Path, err)
	}
	d.log.Info("dispatch.persisted", "path", act.Path, "entries", len(entries))
	return nil
}

// notifyWebhook POSTs the result as a JSON body; any non-2xx status fails the
// action.
func (d *Dispatcher) notifyWebhook(ctx context.Context, act *config.NotifyWebhook, result map[string]any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, act.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	d.log.Info("dispatch.webhook_sent", "url", act.URL, "status", resp.StatusCode)
	return nil
}
