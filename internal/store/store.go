package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Contacts  ContactRepository
	Lists     ListRepository
	Countries CountryRepository
	Leads     LeadRepository
	SyncLog   SyncLogRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		Contacts:  &contactRepo{pool: pool},
		Lists:     &listRepo{pool: pool},
		Countries: &countryRepo{pool: pool},
		Leads:     &leadRepo{pool: pool},
		SyncLog:   &syncLogRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
