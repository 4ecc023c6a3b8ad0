package dav

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"strings"
)

// freeBusyRequest is a parsed scheduling request. values maps each bare
// property name to its value; keys maps it to the full left-hand side,
// parameters included.
type freeBusyRequest struct {
	values map[string]string
	keys   map[string]string
}

func parseFreeBusyRequest(body string) (*freeBusyRequest, error) {
	fb := &freeBusyRequest{
		values: make(map[string]string),
		keys:   make(map[string]string),
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	key := ""
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.HasPrefix(line, " ") && key == "ATTENDEE" {
			fb.values[key] += line[1:]
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			return nil, framingErrorf("invalid free-busy request line: %q", line)
		}
		fullKey := line[:idx]
		key = fullKey
		if semi := strings.IndexByte(fullKey, ';'); semi > 0 {
			key = fullKey[:semi]
		}
		fb.values[key] = line[idx+1:]
		fb.keys[key] = fullKey
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapFramingError(err, "invalid free-busy request")
	}
	return fb, nil
}

// reply renders the schedule-response for periods, a comma separated list
// of busy periods.
func (fb *freeBusyRequest) reply(periods string) string {
	var cal strings.Builder
	cal.WriteString("BEGIN:VCALENDAR\n")
	cal.WriteString("VERSION:2.0\n")
	cal.WriteString("PRODID:-//caldavgw//NONSGML CalDAV gateway//EN\n")
	cal.WriteString("METHOD:REPLY\n")
	cal.WriteString("BEGIN:VFREEBUSY\n")
	cal.WriteString("DTSTAMP:" + fb.values["DTSTAMP"] + "\n")
	cal.WriteString("ORGANIZER:" + fb.values["ORGANIZER"] + "\n")
	cal.WriteString("DTSTART:" + fb.values["DTSTART"] + "\n")
	cal.WriteString("DTEND:" + fb.values["DTEND"] + "\n")
	cal.WriteString("UID:" + fb.values["UID"] + "\n")
	attendeeKey := fb.keys["ATTENDEE"]
	if attendeeKey == "" {
		attendeeKey = "ATTENDEE"
	}
	cal.WriteString(attendeeKey + ":" + fb.values["ATTENDEE"] + "\n")
	if periods != "" {
		cal.WriteString("FREEBUSY;FBTYPE=BUSY-UNAVAILABLE:" + periods + "\n")
	}
	cal.WriteString("END:VFREEBUSY\n")
	cal.WriteString("END:VCALENDAR")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8" ?>` + "\n")
	b.WriteString(`<C:schedule-response xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` + "\n")
	b.WriteString("<C:response>\n")
	b.WriteString("<C:recipient>\n")
	b.WriteString("<D:href>" + escapeXML(fb.values["ATTENDEE"]) + "</D:href>\n")
	b.WriteString("</C:recipient>\n")
	b.WriteString("<C:request-status>2.0;Success</C:request-status>\n")
	b.WriteString("<C:calendar-data>" + escapeXML(cal.String()) + "</C:calendar-data>\n")
	b.WriteString("</C:response>\n")
	b.WriteString("</C:schedule-response>")
	return b.String()
}

func (c *connection) sendFreeBusy(ctx context.Context, x *exchange) error {
	fb, err := parseFreeBusyRequest(x.req.Body)
	if err != nil {
		return err
	}
	periods, err := c.session.FreeBusy(ctx, fb.values)
	if err != nil {
		if errors.Is(err, ErrUnknownRecipient) {
			return c.sendHTTPResponse(http.StatusNotFound, nil, contentTypeText, "Unknown recipient: "+fb.values["ATTENDEE"], true)
		}
		return c.relayStatusError(err, "free-busy lookup")
	}
	return c.sendHTTPResponse(http.StatusOK, nil, contentTypeXML, fb.reply(periods), true)
}
