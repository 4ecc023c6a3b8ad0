package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/emersion/go-ical"

	"gitea.jw6.us/james/caldavgw/internal/dav"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

// Session is the calendar of one authenticated user. It holds no mutable
// state and may be shared by every connection using the same credentials.
type Session struct {
	user   *store.User
	users  store.UserRepository
	events store.EventRepository
}

var _ dav.Session = (*Session)(nil)

func newSession(user *store.User, users store.UserRepository, events store.EventRepository) *Session {
	return &Session{user: user, users: users, events: events}
}

func (s *Session) Email() string {
	return s.user.Email
}

// CalendarCTag is the user's calendar version, bumped by every write.
func (s *Session) CalendarCTag(ctx context.Context) (string, error) {
	version, err := s.users.CalendarVersion(ctx, s.user.ID)
	if err != nil {
		return "", fmt.Errorf("calendar version: %w", err)
	}
	return strconv.FormatInt(version, 10), nil
}

func (s *Session) ListEvents(ctx context.Context) ([]dav.Event, error) {
	stored, err := s.events.ListForUser(ctx, s.user.ID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]dav.Event, 0, len(stored))
	for _, ev := range stored {
		events = append(events, toDAVEvent(ev))
	}
	return events, nil
}

func (s *Session) GetEvent(ctx context.Context, name string) (*dav.Event, error) {
	ev, err := s.events.GetByName(ctx, s.user.ID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("event %s: %w", name, dav.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", name, err)
	}
	out := toDAVEvent(*ev)
	return &out, nil
}

// PutEvent stores body under name. ifMatch may be quoted; "*" requires an
// existing resource and is checked by the store with the row locked.
func (s *Session) PutEvent(ctx context.Context, name, body, ifMatch string) (int, error) {
	uid, err := eventUID(body)
	if err != nil {
		return 0, &dav.StatusError{Code: http.StatusBadRequest, Message: "Invalid calendar object: " + err.Error()}
	}

	expected := strings.Trim(strings.TrimSpace(ifMatch), `"`)
	_, created, err := s.events.Upsert(ctx, store.Event{
		UserID:  s.user.ID,
		Name:    name,
		UID:     uid,
		RawICAL: body,
		ETag:    computeETag(body),
	}, expected)
	if errors.Is(err, store.ErrETagMismatch) {
		return 0, preconditionFailed()
	}
	if err != nil {
		return 0, fmt.Errorf("store event %s: %w", name, err)
	}
	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

func (s *Session) DeleteEvent(ctx context.Context, name string) (int, error) {
	err := s.events.DeleteByName(ctx, s.user.ID, name)
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete event %s: %w", name, err)
	}
	return http.StatusNoContent, nil
}

func preconditionFailed() *dav.StatusError {
	return &dav.StatusError{Code: http.StatusPreconditionFailed, Message: "Precondition Failed"}
}

func toDAVEvent(ev store.Event) dav.Event {
	return dav.Event{Name: ev.Name, ETag: `"` + ev.ETag + `"`, ICS: ev.RawICAL}
}

func computeETag(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// eventUID validates body as an iCalendar object with a VEVENT and returns
// that event's UID.
func eventUID(body string) (string, error) {
	cal, err := ical.NewDecoder(strings.NewReader(body)).Decode()
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	events := cal.Events()
	if len(events) == 0 {
		return "", errors.New("no VEVENT component")
	}
	uid, err := events[0].Props.Text(ical.PropUID)
	if err != nil {
		return "", fmt.Errorf("UID: %w", err)
	}
	if strings.TrimSpace(uid) == "" {
		return "", errors.New("missing UID")
	}
	return uid, nil
}
