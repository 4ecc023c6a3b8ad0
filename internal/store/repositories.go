package store

import "context"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create inserts the user or updates the email of an existing username.
	Create(ctx context.Context, username, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByLogin matches the username exactly or the email case-insensitively.
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	CalendarVersion(ctx context.Context, userID int64) (int64, error)
}

// AppPasswordRepository handles Basic Auth token storage.
type AppPasswordRepository interface {
	Create(ctx context.Context, token AppPassword) (*AppPassword, error)
	FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// EventRepository handles event storage. Writes bump the owner's calendar
// version in the same transaction.
// MatchAny as an Upsert ifMatch accepts any existing event.
const MatchAny = "*"

type EventRepository interface {
	ListForUser(ctx context.Context, userID int64) ([]Event, error)
	GetByName(ctx context.Context, userID int64, name string) (*Event, error)
	// Upsert stores event. A non-empty ifMatch must equal the stored etag,
	// or be MatchAny to require any stored version, otherwise ErrETagMismatch
	// is returned. created reports an insert.
	Upsert(ctx context.Context, event Event, ifMatch string) (saved *Event, created bool, err error)
	DeleteByName(ctx context.Context, userID int64, name string) error
}
