package backend

import (
	"fmt"
	"strings"
	"time"
)

const (
	freeBusyMinDateTime = "19000101T000000Z"
	freeBusyMaxDateTime = "21001231T235959Z"
	// maxInstances bounds recurrence expansion per event.
	maxInstances = 1000
)

var (
	freeBusyMinTime = mustParseICalDateTime(freeBusyMinDateTime)
	freeBusyMaxTime = mustParseICalDateTime(freeBusyMaxDateTime)
)

var icalDateTimeFormats = []string{
	"20060102",
	"20060102T150405",
	"20060102T150405Z",
	"20060102T150405-0700",
	"20060102T150405-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07:00",
}

// periodFormat renders free-busy period bounds (RFC 5545 UTC DATE-TIME).
const periodFormat = "20060102T150405Z"

// parseICalDateTime parses a DATE or DATE-TIME value. Floating times are
// read as UTC.
func parseICalDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, format := range icalDateTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime format: %s", s)
}

func mustParseICalDateTime(s string) time.Time {
	t, err := parseICalDateTime(s)
	if err != nil {
		panic(fmt.Sprintf("invalid datetime constant %q: %v", s, err))
	}
	return t
}

// clampWindow restricts a free-busy window to the supported date range.
func clampWindow(start, end time.Time) (time.Time, time.Time) {
	if start.Before(freeBusyMinTime) {
		start = freeBusyMinTime
	}
	if end.After(freeBusyMaxTime) {
		end = freeBusyMaxTime
	}
	return start, end
}
