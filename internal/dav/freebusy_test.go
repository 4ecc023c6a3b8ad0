package dav

import (
	"errors"
	"strings"
	"testing"
)

const freeBusyBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"METHOD:REQUEST\r\n" +
	"BEGIN:VFREEBUSY\r\n" +
	"DTSTAMP:20240101T080000Z\r\n" +
	"ORGANIZER:mailto:alice@example.com\r\n" +
	"DTSTART:20240102T000000Z\r\n" +
	"DTEND:20240103T000000Z\r\n" +
	"UID:fb-123\r\n" +
	"ATTENDEE;PARTSTAT=NEEDS-ACTION;CN=Bob Builder:mailto:bob@exa\r\n" +
	" mple.com\r\n" +
	"END:VFREEBUSY\r\n" +
	"END:VCALENDAR\r\n"

func TestParseFreeBusyRequest(t *testing.T) {
	fb, err := parseFreeBusyRequest(freeBusyBody)
	if err != nil {
		t.Fatalf("parseFreeBusyRequest returned error: %v", err)
	}
	if got := fb.values["ATTENDEE"]; got != "mailto:bob@example.com" {
		t.Errorf("expected folded attendee to be joined, got %q", got)
	}
	if got := fb.keys["ATTENDEE"]; got != "ATTENDEE;PARTSTAT=NEEDS-ACTION;CN=Bob Builder" {
		t.Errorf("expected full attendee key with parameters, got %q", got)
	}
	if fb.values["UID"] != "fb-123" || fb.values["DTSTART"] != "20240102T000000Z" {
		t.Errorf("unexpected values %v", fb.values)
	}
	if fb.values["BEGIN"] != "VCALENDAR" {
		t.Errorf("expected the last BEGIN to win, got %q", fb.values["BEGIN"])
	}
}

func TestParseFreeBusyContinuationOnlyForAttendee(t *testing.T) {
	_, err := parseFreeBusyRequest("UID:abc\r\n def\r\n")
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FramingError for continuation of a non-attendee key, got %v", err)
	}
}

func TestParseFreeBusyRejectsLinesWithoutColon(t *testing.T) {
	for _, body := range []string{"garbage", ":novalue", "UID:1\r\n\r\n"} {
		_, err := parseFreeBusyRequest(body)
		var fe *FramingError
		if !errors.As(err, &fe) {
			t.Errorf("body %q: expected FramingError, got %v", body, err)
		}
	}
}

func TestFreeBusyReply(t *testing.T) {
	fb, err := parseFreeBusyRequest(freeBusyBody)
	if err != nil {
		t.Fatalf("parseFreeBusyRequest returned error: %v", err)
	}

	reply := fb.reply("20240102T090000Z/20240102T100000Z")
	assertWellFormed(t, reply)
	for _, want := range []string{
		"<D:href>mailto:bob@example.com</D:href>",
		"<C:request-status>2.0;Success</C:request-status>",
		"METHOD:REPLY",
		"BEGIN:VFREEBUSY",
		"DTSTAMP:20240101T080000Z",
		"ORGANIZER:mailto:alice@example.com",
		"DTSTART:20240102T000000Z",
		"DTEND:20240103T000000Z",
		"UID:fb-123",
		"ATTENDEE;PARTSTAT=NEEDS-ACTION;CN=Bob Builder:mailto:bob@example.com",
		"FREEBUSY;FBTYPE=BUSY-UNAVAILABLE:20240102T090000Z/20240102T100000Z",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("expected reply to contain %s", want)
		}
	}
}

func TestFreeBusyReplyWithoutBusyPeriods(t *testing.T) {
	fb, err := parseFreeBusyRequest(freeBusyBody)
	if err != nil {
		t.Fatalf("parseFreeBusyRequest returned error: %v", err)
	}
	if reply := fb.reply(""); strings.Contains(reply, "FREEBUSY;") {
		t.Fatalf("expected no FREEBUSY line without periods:\n%s", reply)
	}
}
