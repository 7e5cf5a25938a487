package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteAdapter implements Adapter over modernc.org/sqlite, the
// pure-Go/cgo-free driver used throughout hazyhaar-GoClode's internal/core/db.go.
type sqliteAdapter struct {
	db *sqlx.DB
}

// OpenSQLite opens a read-only-where-possible pooled connection to a
// SQLite database file, mirroring GoClode's WAL-pragma DSN construction.
func OpenSQLite(path string, pool PoolConfig) (Adapter, error) {
	dsn := fmt.Sprintf(
		"file:%s?mode=ro&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, newOpError(ErrDBConn, "", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, newOpError(ErrDBConn, "", err)
	}
	return &sqliteAdapter{db: db}, nil
}

func (a *sqliteAdapter) Dialect() Dialect { return DialectSQLite }

func (a *sqliteAdapter) Introspect(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{Tables: map[string]struct{}{}, Columns: map[string]map[string]struct{}{}}

	var tables []string
	err := a.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, newOpError(classify(err), "", err)
	}

	for _, t := range tables {
		cat.Tables[t] = struct{}{}
		rows, err := a.db.QueryxContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t)))
		if err != nil {
			return nil, newOpError(classify(err), "", err)
		}
		cols := map[string]struct{}{}
		for rows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				_ = rows.Close()
				return nil, newOpError(classify(err), "", err)
			}
			cols[name] = struct{}{}
		}
		_ = rows.Close()
		cat.Columns[t] = cols
	}
	return cat, nil
}

func (a *sqliteAdapter) Count(ctx context.Context, query string, cap int) (CountResult, error) {
	return smartCount(ctx, a.db, query, cap)
}

func (a *sqliteAdapter) ExecutePreview(ctx context.Context, query string, limit int) (*ResultSet, error) {
	return executePreview(ctx, a.db, query, limit)
}

func (a *sqliteAdapter) ExecuteStream(ctx context.Context, query string) (RowIterator, error) {
	return executeStream(ctx, a.db, query)
}

func (a *sqliteAdapter) Close() error { return a.db.Close() }

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
