package calsync

import (
	"strings"
	"time"
)

const productID = "-//paperflow//EN"

// BuildAllDayEvent renders the iCalendar interchange record for a single
// all-day event. Line endings are CRLF as RFC 5545 mandates; DTEND is the
// exclusive end, one day after the start.
func BuildAllDayEvent(uid string, start time.Time, summary, description string, stamp time.Time) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + productID,
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + stamp.UTC().Format("20060102T150405Z"),
		"DTSTART;VALUE=DATE:" + start.Format("20060102"),
		"DTEND;VALUE=DATE:" + start.AddDate(0, 0, 1).Format("20060102"),
		"SUMMARY:" + summary,
		"DESCRIPTION:" + description,
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}
