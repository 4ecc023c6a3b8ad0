package dav

import "context"

// Event is a calendar object as exposed by a backend session.
type Event struct {
	// Name is the resource name within the calendar collection, without a
	// leading slash.
	Name string
	ETag string
	ICS  string
}

// Session is an authenticated backend calendar. A connection holds at most
// one Session for its lifetime.
type Session interface {
	Email() string
	CalendarCTag(ctx context.Context) (string, error)
	ListEvents(ctx context.Context) ([]Event, error)
	// GetEvent returns ErrEventNotFound when name does not exist.
	GetEvent(ctx context.Context, name string) (*Event, error)
	// PutEvent creates or replaces an event and returns the HTTP status to relay.
	PutEvent(ctx context.Context, name, body, ifMatch string) (int, error)
	DeleteEvent(ctx context.Context, name string) (int, error)
	// FreeBusy returns the busy periods for the ATTENDEE in values, or
	// ErrUnknownRecipient.
	FreeBusy(ctx context.Context, values map[string]string) (string, error)
}

// SessionProvider hands out sessions for credentials, creating or reusing
// them. Implementations must be safe for concurrent use.
type SessionProvider interface {
	Session(ctx context.Context, username, password string) (Session, error)
}
