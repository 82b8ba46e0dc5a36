// Package pg persists the authorization core in PostgreSQL.
//
// The row-level security policies shipped with the schema enforce the
// same same-company-or-superadmin predicate the application evaluates;
// they are kept in lockstep by the parity test in internal/authz.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cuehall.org/internal/authz"
)

// Store implements authz.Store over database/sql with the pgx driver.
type Store struct {
	db *sql.DB
}

var _ authz.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for the service.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Profiles(context.Context) authz.ProfileStore {
	return &profileStore{db: s.db}
}

func (s *Store) Companies(context.Context) authz.CompanyStore {
	return &companyStore{db: s.db}
}

func (s *Store) JoinRequests(context.Context) authz.JoinRequestStore {
	return &joinRequestStore{db: s.db}
}
