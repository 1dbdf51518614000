package calsync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// CalendarRef identifies one calendar on the server.
type CalendarRef struct {
	Path string // collection path on the server
	Name string // display name
}

// Backend abstracts the CalDAV transport so the manager can be tested against
// a fake server.
type Backend interface {
	// Connect verifies credentials by resolving the current user principal.
	Connect(ctx context.Context) error

	// Calendars lists the principal's calendars in server-returned order.
	Calendars(ctx context.Context) ([]CalendarRef, error)

	// EventsOnDate returns the raw iCalendar text of every event overlapping
	// the single given date.
	EventsOnDate(ctx context.Context, calendarPath string, day time.Time) ([]string, error)

	// PutEvent stores the iCalendar record under a new object named by uid.
	PutEvent(ctx context.Context, calendarPath, uid, record string) error
}

type davBackend struct {
	client  *caldav.Client
	homeSet string
}

// NewDAVBackend builds a CalDAV backend with basic-auth credentials.
func NewDAVBackend(serverURL, username, password string) (Backend, error) {
	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: 30 * time.Second}, username, password)
	client, err := caldav.NewClient(httpClient, serverURL)
	if err != nil {
		return nil, fmt.Errorf("caldav client: %w", err)
	}
	return &davBackend{client: client}, nil
}

func (b *davBackend) Connect(ctx context.Context) error {
	principal, err := b.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := b.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return fmt.Errorf("find calendar home set: %w", err)
	}
	b.homeSet = homeSet
	return nil
}

func (b *davBackend) Calendars(ctx context.Context) ([]CalendarRef, error) {
	cals, err := b.client.FindCalendars(ctx, b.homeSet)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	refs := make([]CalendarRef, 0, len(cals))
	for _, c := range cals {
		refs = append(refs, CalendarRef{Path: c.Path, Name: c.Name})
	}
	return refs, nil
}

func (b *davBackend) EventsOnDate(ctx context.Context, calendarPath string, day time.Time) ([]string, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: day,
				End:   day.AddDate(0, 0, 1),
			}},
		},
	}
	objs, err := b.client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query: %w", err)
	}
	raws := make([]string, 0, len(objs))
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(obj.Data); err != nil {
			continue
		}
		raws = append(raws, buf.String())
	}
	return raws, nil
}

func (b *davBackend) PutEvent(ctx context.Context, calendarPath, uid, record string) error {
	cal, err := ical.NewDecoder(strings.NewReader(record)).Decode()
	if err != nil {
		return fmt.Errorf("decode event record: %w", err)
	}
	objPath := path.Join(calendarPath, uid+".ics")
	if _, err := b.client.PutCalendarObject(ctx, objPath, cal); err != nil {
		return fmt.Errorf("put calendar object: %w", err)
	}
	return nil
}
