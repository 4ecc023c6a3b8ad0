package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"gitea.jw6.us/james/caldavgw/internal/dav"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

type period struct {
	start, end time.Time
}

// FreeBusy reports when the ATTENDEE of a VFREEBUSY request is busy between
// its DTSTART and DTEND, as comma separated start/end periods in UTC.
func (s *Session) FreeBusy(ctx context.Context, values map[string]string) (string, error) {
	attendee := strings.TrimSpace(values["ATTENDEE"])
	if len(attendee) >= len("mailto:") && strings.EqualFold(attendee[:len("mailto:")], "mailto:") {
		attendee = attendee[len("mailto:"):]
	}
	if attendee == "" {
		return "", dav.ErrUnknownRecipient
	}

	start, err := parseICalDateTime(values["DTSTART"])
	if err != nil {
		return "", &dav.StatusError{Code: http.StatusBadRequest, Message: "Invalid DTSTART: " + err.Error()}
	}
	end, err := parseICalDateTime(values["DTEND"])
	if err != nil {
		return "", &dav.StatusError{Code: http.StatusBadRequest, Message: "Invalid DTEND: " + err.Error()}
	}

	user, err := s.users.GetByEmail(ctx, attendee)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", attendee, dav.ErrUnknownRecipient)
	}
	if err != nil {
		return "", fmt.Errorf("lookup attendee %s: %w", attendee, err)
	}

	start, end = clampWindow(start, end)
	if !end.After(start) {
		return "", nil
	}

	events, err := s.events.ListForUser(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list events of %s: %w", attendee, err)
	}

	var busy []period
	for _, ev := range events {
		busy = append(busy, busyPeriods(ev, start, end)...)
	}
	return formatPeriods(mergePeriods(busy)), nil
}

// busyPeriods returns the parts of [start, end) occupied by the opaque,
// non-cancelled VEVENTs of ev, recurrences included.
func busyPeriods(ev store.Event, start, end time.Time) []period {
	cal, err := ical.NewDecoder(strings.NewReader(ev.RawICAL)).Decode()
	if err != nil {
		log.Printf("[WARN] skipping unparsable event %s in free-busy: %v", ev.Name, err)
		return nil
	}

	var out []period
	for _, vevent := range cal.Events() {
		if !blocksTime(vevent) {
			continue
		}
		evStart, err := vevent.DateTimeStart(time.UTC)
		if err != nil || evStart.IsZero() {
			continue
		}
		evEnd, err := vevent.DateTimeEnd(time.UTC)
		if err != nil || !evEnd.After(evStart) {
			continue
		}
		duration := evEnd.Sub(evStart)

		starts := []time.Time{evStart}
		rset, err := vevent.RecurrenceSet(time.UTC)
		if err != nil {
			log.Printf("[WARN] ignoring recurrence of event %s: %v", ev.Name, err)
		} else if rset != nil {
			starts = rset.Between(start.Add(-duration), end, false)
			if len(starts) > maxInstances {
				starts = starts[:maxInstances]
			}
		}

		for _, s := range starts {
			p := period{start: s, end: s.Add(duration)}
			if !p.start.Before(end) || !p.end.After(start) {
				continue
			}
			if p.start.Before(start) {
				p.start = start
			}
			if p.end.After(end) {
				p.end = end
			}
			out = append(out, p)
		}
	}
	return out
}

func blocksTime(vevent ical.Event) bool {
	if prop := vevent.Props.Get(ical.PropTransparency); prop != nil && strings.EqualFold(prop.Value, "TRANSPARENT") {
		return false
	}
	if prop := vevent.Props.Get(ical.PropStatus); prop != nil && strings.EqualFold(prop.Value, "CANCELLED") {
		return false
	}
	return true
}

// mergePeriods sorts periods and joins overlapping or touching ones.
func mergePeriods(periods []period) []period {
	if len(periods) == 0 {
		return nil
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].start.Before(periods[j].start) })

	merged := []period{periods[0]}
	for _, p := range periods[1:] {
		last := &merged[len(merged)-1]
		if p.start.After(last.end) {
			merged = append(merged, p)
			continue
		}
		if p.end.After(last.end) {
			last.end = p.end
		}
	}
	return merged
}

func formatPeriods(periods []period) string {
	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, p.start.UTC().Format(periodFormat)+"/"+p.end.UTC().Format(periodFormat))
	}
	return strings.Join(parts, ",")
}
