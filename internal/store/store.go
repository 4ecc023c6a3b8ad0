package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbPool is the subset of pgxpool.Pool the repositories use.
type dbPool interface {
	PgxPool
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var _ dbPool = (*pgxpool.Pool)(nil)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool dbPool

	Users        UserRepository
	AppPasswords AppPasswordRepository
	Events       EventRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return newStore(pool)
}

func newStore(pool dbPool) *Store {
	return &Store{
		pool:         pool,
		Users:        &userRepo{pool: pool},
		AppPasswords: &appPasswordRepo{pool: pool},
		Events:       &eventRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
