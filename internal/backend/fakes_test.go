package backend

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gitea.jw6.us/james/caldavgw/internal/auth"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

// memStore is an in-memory stand-in for the user and event repositories.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	events   map[int64]map[string]store.Event
	nextID   int64
	failWith error
	ifMatch  []string
}

func newMemStore(users ...*store.User) *memStore {
	m := &memStore{users: map[int64]*store.User{}, events: map[int64]map[string]store.Event{}}
	for _, u := range users {
		m.users[u.ID] = u
		m.events[u.ID] = map[string]store.Event{}
	}
	return m
}

type memUsers struct {
	store.UserRepository
	m *memStore
}

type memEvents struct {
	*memStore
}

func (m *memStore) userRepo() store.UserRepository   { return memUsers{m: m} }
func (m *memStore) eventRepo() store.EventRepository { return memEvents{m} }

func (u memUsers) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	for _, user := range u.m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (u memUsers) CalendarVersion(ctx context.Context, userID int64) (int64, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	user, ok := u.m.users[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return user.CalendarVersion, nil
}

func (e memEvents) ListForUser(ctx context.Context, userID int64) ([]store.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failWith != nil {
		return nil, e.failWith
	}
	var out []store.Event
	for _, ev := range e.events[userID] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (e memEvents) GetByName(ctx context.Context, userID int64, name string) (*store.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[userID][name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ev, nil
}

func (e memEvents) Upsert(ctx context.Context, event store.Event, ifMatch string) (*store.Event, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ifMatch = append(e.ifMatch, ifMatch)
	current, exists := e.events[event.UserID][event.Name]
	if ifMatch != "" && (!exists || (ifMatch != store.MatchAny && current.ETag != ifMatch)) {
		return nil, false, store.ErrETagMismatch
	}
	e.nextID++
	event.ID = e.nextID
	event.LastModified = time.Now()
	e.events[event.UserID][event.Name] = event
	e.users[event.UserID].CalendarVersion++
	return &event, !exists, nil
}

func (e memEvents) DeleteByName(ctx context.Context, userID int64, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.events[userID][name]; !ok {
		return store.ErrNotFound
	}
	delete(e.events[userID], name)
	e.users[userID].CalendarVersion++
	return nil
}

// fakeAuth accepts password "secret" for known logins and counts calls.
type fakeAuth struct {
	mu    sync.Mutex
	users map[string]*store.User
	calls int
	err   error
	gate  chan struct{}
}

func (f *fakeAuth) Authenticate(ctx context.Context, login, password string) (*store.User, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[login]
	if !ok || password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeAuth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ics(uid string, lines ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nBEGIN:VEVENT\r\n")
	b.WriteString("UID:" + uid + "\r\n")
	b.WriteString("DTSTAMP:20240101T000000Z\r\n")
	for _, l := range lines {
		b.WriteString(l + "\r\n")
	}
	b.WriteString("END:VEVENT\r\nEND:VCALENDAR\r\n")
	return b.String()
}
