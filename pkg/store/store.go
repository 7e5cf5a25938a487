// Package store provides the internal persistence backend shared by
// pkg/sqlcache and pkg/embedstore: a schema_id-scoped *sqlx.DB over
// either SQLite (default) or PostgreSQL (optional), bootstrapped with
// the tables both callers need.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Backend identifies which driver a Store was opened against.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Store wraps a pooled connection to the internal persistence backend.
// sqlcache and embedstore each get their own tables within it, keyed by
// schema_id, mirroring the teacher's pattern of one Client wrapping one
// *sql.DB shared across multiple higher-level stores.
type Store struct {
	db      *sqlx.DB
	backend Backend
}

// Open opens (and, for SQLite, creates/bootstraps) the internal store.
// Postgres callers get golang-migrate-managed schema, following the
// teacher's pkg/database/client.go runMigrations shape exactly; SQLite
// callers get a hand-rolled CREATE TABLE IF NOT EXISTS bootstrap,
// following hazyhaar-GoClode's internal/core/db.go initSchema shape —
// migrate's sqlite3 driver pulls in a cgo dependency this module avoids
// by standardizing on modernc.org/sqlite, so SQLite intentionally does
// not go through golang-migrate.
func Open(backend Backend, dsn string) (*Store, error) {
	switch backend {
	case BackendSQLite:
		return openSQLite(dsn)
	case BackendPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func openSQLite(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite store schema: %w", err)
	}
	return &Store{db: db, backend: BackendSQLite}, nil
}

func openPostgres(dsn string) (*Store, error) {
	stdDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	if err := stdDB.Ping(); err != nil {
		_ = stdDB.Close()
		return nil, fmt.Errorf("ping postgres store: %w", err)
	}
	if err := runMigrations(stdDB); err != nil {
		_ = stdDB.Close()
		return nil, fmt.Errorf("migrate postgres store: %w", err)
	}
	return &Store{db: sqlx.NewDb(stdDB, "pgx"), backend: BackendPostgres}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "nl2sql_store", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// DB returns the underlying *sqlx.DB for use by sqlcache/embedstore.
func (s *Store) DB() *sqlx.DB { return s.db }

// Backend reports which driver this Store was opened against; sqlcache
// and embedstore use it to pick `?`/`$N` placeholder style and upsert
// syntax (SQLite's ON CONFLICT vs Postgres's, which differ only in the
// excluded-row reference).
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the connection is alive, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sql_cache (
	schema_id        TEXT NOT NULL,
	normalized_query TEXT NOT NULL,
	generated_sql    TEXT NOT NULL,
	hit_count        INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	last_used_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (schema_id, normalized_query)
);

CREATE TABLE IF NOT EXISTS table_embeddings (
	schema_id  TEXT NOT NULL,
	table_name TEXT NOT NULL,
	dim        INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (schema_id, table_name)
);
`
