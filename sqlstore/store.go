// Package sqlstore backs the engine's provider contracts with PostgreSQL
// through database/sql and the pgx stdlib driver. Each sub-store owns one
// table; the registration store runs the tenant-provisioning transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/caseflow-io/authengine"
	"github.com/caseflow-io/authengine/session"
)

// Store bundles the per-table sub-stores over one connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an existing pool, which the caller keeps owning.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Users returns the UserProvider implementation.
func (s *Store) Users() authengine.UserProvider {
	return &userStore{db: s.db}
}

// Organizations returns the OrganizationProvider implementation.
func (s *Store) Organizations() authengine.OrganizationProvider {
	return &orgStore{db: s.db}
}

// Sessions returns the refresh-token store.
func (s *Store) Sessions() session.Store {
	return &sessionStore{db: s.db}
}

// Registration returns the transactional tenant-provisioning store.
func (s *Store) Registration() authengine.RegistrationStore {
	return &registrationStore{db: s.db}
}

// Audit returns a sink persisting audit records.
func (s *Store) Audit() *AuditStore {
	return &AuditStore{db: s.db}
}
