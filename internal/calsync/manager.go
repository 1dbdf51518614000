// Package calsync creates all-day events on a CalDAV calendar, skipping
// events that already exist on the target date.
package calsync

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager connects lazily on first use and stays connected for its lifetime.
// All methods report failure by returning false; nothing escalates, since a
// calendar failure must never abort the rest of a dispatch.
type Manager struct {
	backend   Backend
	log       *slog.Logger
	connected bool

	now    func() time.Time
	newUID func() string
}

func NewManager(backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend: backend,
		log:     logger,
		now:     time.Now,
		newUID:  uuid.NewString,
	}
}

// SyncEvent ensures an all-day event with the given summary exists on date
// (YYYY-MM-DD) in the named calendar. An already-present duplicate counts as
// success: the desired state exists.
func (m *Manager) SyncEvent(ctx context.Context, calendarName, date, summary, description string) bool {
	if !m.connected {
		if err := m.backend.Connect(ctx); err != nil {
			m.log.Error("calsync.connect_failed", "error", err)
			return false
		}
		m.connected = true
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		m.log.Error("calsync.bad_date", "date", date, "error", err)
		return false
	}

	target, ok := m.findCalendar(ctx, calendarName)
	if !ok {
		m.log.Error("calsync.calendar_not_found", "calendar", calendarName)
		return false
	}

	if m.hasDuplicate(ctx, target.Path, day, summary) {
		m.log.Debug("calsync.duplicate_skipped", "calendar", calendarName, "date", date, "summary", summary)
		return true
	}

	uid := m.newUID()
	record := BuildAllDayEvent(uid, day, summary, description, m.now())
	if err := m.backend.PutEvent(ctx, target.Path, uid, record); err != nil {
		m.log.Error("calsync.create_failed", "calendar", calendarName, "date", date, "error", err)
		return false
	}
	m.log.Info("calsync.event_created", "calendar", calendarName, "date", date, "summary", summary)
	return true
}

// findCalendar matches the display name or the collection path basename,
// case-sensitively, first match in server order wins.
func (m *Manager) findCalendar(ctx context.Context, name string) (CalendarRef, bool) {
	refs, err := m.backend.Calendars(ctx)
	if err != nil {
		m.log.Error("calsync.list_calendars_failed", "error", err)
		return CalendarRef{}, false
	}
	for _, ref := range refs {
		if ref.Name == name || path.Base(strings.TrimSuffix(ref.Path, "/")) == name {
			return ref, true
		}
	}
	return CalendarRef{}, false
}

// hasDuplicate treats any event on the date whose raw text contains the
// candidate summary as a duplicate. A failed search assumes no duplicate so a
// lookup outage cannot suppress event creation.
func (m *Manager) hasDuplicate(ctx context.Context, calendarPath string, day time.Time, summary string) bool {
	raws, err := m.backend.EventsOnDate(ctx, calendarPath, day)
	if err != nil {
		m.log.Warn("calsync.duplicate_search_failed", "error", err, "assuming", "no duplicate")
		return false
	}
	for _, raw := range raws {
		if strings.Contains(raw, summary) {
			return true
		}
	}
	return false
}
