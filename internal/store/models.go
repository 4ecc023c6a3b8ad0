package store

import "time"

// User is a gateway account. CalendarVersion grows with every event write
// and backs the calendar ctag.
type User struct {
	ID              int64
	Username        string
	Email           string
	CalendarVersion int64
	CreatedAt       time.Time
}

// Event stores a raw iCalendar resource under its client-chosen name.
type Event struct {
	ID           int64
	UserID       int64
	Name         string
	UID          string
	RawICAL      string
	ETag         string
	LastModified time.Time
}

// AppPassword is a per-client credential for DAV access.
type AppPassword struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}
