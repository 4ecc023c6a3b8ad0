package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, calendar_version, created_at`

const eventColumns = `id, user_id, name, uid, raw_ical, etag, last_modified`

const appPasswordColumns = `id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CalendarVersion, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.UID, &e.RawICAL, &e.ETag, &e.LastModified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// userRepo implements UserRepository.
type userRepo struct {
	pool dbPool
}

func (r *userRepo) Create(ctx context.Context, username, email string) (*User, error) {
	defer observeDB(ctx, "db.users.create")()
	const q = `INSERT INTO users (username, email) VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email
RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, username, email))
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "db.users.get_by_id")()
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepo) GetByLogin(ctx context.Context, login string) (*User, error) {
	defer observeDB(ctx, "db.users.get_by_login")()
	const q = `SELECT ` + userColumns + ` FROM users
WHERE username=$1 OR LOWER(email)=LOWER($1)
ORDER BY (username=$1) DESC LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, login))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer observeDB(ctx, "db.users.get_by_email")()
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
}

func (r *userRepo) CalendarVersion(ctx context.Context, userID int64) (int64, error) {
	defer observeDB(ctx, "db.users.calendar_version")()
	var version int64
	if err := r.pool.QueryRow(ctx, `SELECT calendar_version FROM users WHERE id=$1`, userID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

// appPasswordRepo implements AppPasswordRepository.
type appPasswordRepo struct {
	pool dbPool
}

func (r *appPasswordRepo) Create(ctx context.Context, token AppPassword) (*AppPassword, error) {
	defer observeDB(ctx, "db.app_passwords.create")()
	const q = `INSERT INTO app_passwords (user_id, label, token_hash, expires_at)
VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, token.UserID, token.Label, token.TokenHash, token.ExpiresAt).Scan(&token.ID, &token.CreatedAt); err != nil {
		return nil, fmt.Errorf("create app password: %w", err)
	}
	return &token, nil
}

func (r *appPasswordRepo) FindValidByUser(ctx context.Context, userID int64) ([]AppPassword, error) {
	defer observeDB(ctx, "db.app_passwords.find_valid")()
	const q = `SELECT ` + appPasswordColumns + ` FROM app_passwords
WHERE user_id=$1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []AppPassword
	for rows.Next() {
		var t AppPassword
		if err := rows.Scan(&t.ID, &t.UserID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *appPasswordRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "db.app_passwords.touch")()
	_, err := r.pool.Exec(ctx, `UPDATE app_passwords SET last_used_at=NOW() WHERE id=$1`, id)
	return err
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool dbPool
}

func (r *eventRepo) ListForUser(ctx context.Context, userID int64) ([]Event, error) {
	defer observeDB(ctx, "db.events.list")()
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE user_id=$1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *eventRepo) GetByName(ctx context.Context, userID int64, name string) (*Event, error) {
	defer observeDB(ctx, "db.events.get_by_name")()
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE user_id=$1 AND name=$2`, userID, name))
}

func (r *eventRepo) Upsert(ctx context.Context, event Event, ifMatch string) (*Event, bool, error) {
	defer observeDB(ctx, "db.events.upsert")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("begin event upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	created := false
	err = tx.QueryRow(ctx, `SELECT etag FROM events WHERE user_id=$1 AND name=$2 FOR UPDATE`, event.UserID, event.Name).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("lock event %s: %w", event.Name, err)
	}
	if ifMatch != "" && (created || (ifMatch != MatchAny && current != ifMatch)) {
		return nil, false, ErrETagMismatch
	}

	const q = `INSERT INTO events (user_id, name, uid, raw_ical, etag, last_modified)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (user_id, name) DO UPDATE
SET uid = EXCLUDED.uid, raw_ical = EXCLUDED.raw_ical, etag = EXCLUDED.etag, last_modified = NOW()
RETURNING id, last_modified`
	var lastModified time.Time
	if err := tx.QueryRow(ctx, q, event.UserID, event.Name, event.UID, event.RawICAL, event.ETag).Scan(&event.ID, &lastModified); err != nil {
		return nil, false, fmt.Errorf("store event %s: %w", event.Name, err)
	}
	event.LastModified = lastModified

	if err := bumpCalendarVersion(ctx, tx, event.UserID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit event %s: %w", event.Name, err)
	}
	return &event, created, nil
}

func (r *eventRepo) DeleteByName(ctx context.Context, userID int64, name string) error {
	defer observeDB(ctx, "db.events.delete")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin event delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE user_id=$1 AND name=$2`, userID, name)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := bumpCalendarVersion(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event delete %s: %w", name, err)
	}
	return nil
}

func bumpCalendarVersion(ctx context.Context, tx pgx.Tx, userID int64) error {
	if _, err := tx.Exec(ctx, `UPDATE users SET calendar_version = calendar_version + 1 WHERE id=$1`, userID); err != nil {
		return fmt.Errorf("bump calendar version: %w", err)
	}
	return nil
}
