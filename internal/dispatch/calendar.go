package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paperflow/paperflow/internal/config"
)

// syncCalendar resolves credentials and the target calendar, then syncs one
// all-day event per schedule entry. Entries fail independently: one bad entry
// never blocks the rest of the batch.
func (d *Dispatcher) syncCalendar(ctx context.Context, act *config.SyncCalendar, result map[string]any, sourceFile string) error {
	if act.UsernameEnv == "" || act.PasswordEnv == "" {
		return fmt.Errorf("add_caldav_event requires username_env and password_env")
	}
	username := os.Getenv(act.UsernameEnv)
	password := os.Getenv(act.PasswordEnv)
	if username == "" || password == "" {
		return fmt.Errorf("calendar credentials missing: %s or %s not set", act.UsernameEnv, act.PasswordEnv)
	}

	category, _ := result["category_folder"].(string)
	calendarName, ok := act.CalendarMap[category]
	if !ok {
		d.log.Info("dispatch.calendar_skip_unmapped_category", "category", category, "source", sourceFile)
		return nil
	}

	entries := scheduleEntries(result)
	if len(entries) == 0 {
		d.log.Info("dispatch.calendar_skip_no_schedule", "source", sourceFile)
		return nil
	}

	syncer, err := d.newSyncer(act.ServerURL, username, password)
	if err != nil {
		return fmt.Errorf("calendar connection: %w", err)
	}

	description := "Imported from " + filepath.Base(sourceFile)
	var failed int
	for _, entry := range entries {
		date, _ := entry["date"].(string)
		if date == "" {
			continue
		}
		summary := buildSummary(entry)
		if summary == "" {
			continue
		}
		if !syncer.SyncEvent(ctx, calendarName, date, summary, description) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d calendar event(s) failed to sync", failed)
	}
	return nil
}

// scheduleEntries finds the schedule list in the result: either a top-level
// schedule_list or one nested a single object deep (e.g. under
// school_details).
func scheduleEntries(result map[string]any) []map[string]any {
	if entries := asEntryList(result["schedule_list"]); entries != nil {
		return entries
	}
	for _, v := range result {
		if m, ok := v.(map[string]any); ok {
			if entries := asEntryList(m["schedule_list"]); entries != nil {
				return entries
			}
		}
	}
	return nil
}

func asEntryList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

// buildSummary joins the entry's non-empty special items and irregular
// schedule with " / ". An empty summary means the entry has nothing worth a
// calendar event.
func buildSummary(entry map[string]any) string {
	var parts []string

	switch items := entry["special_items"].(type) {
	case []any:
		for _, it := range items {
			if s := strings.TrimSpace(fmt.Sprintf("%v", it)); s != "" && it != nil {
				parts = append(parts, s)
			}
		}
	case string:
		if s := strings.TrimSpace(items); s != "" {
			parts = append(parts, s)
		}
	}

	if irregular, ok := entry["irregular_schedule"].(string); ok {
		if s := strings.TrimSpace(irregular); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, " / ")
}
