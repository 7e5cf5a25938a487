package dbadapter

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver, same as the teacher's pkg/database/client.go
)

// postgresAdapter implements Adapter over pgx via database/sql, mirroring
// the teacher's pkg/database/client.go connection setup minus ent.
type postgresAdapter struct {
	db *sqlx.DB
}

// OpenPostgres opens a pooled connection to Postgres and, where the
// connecting role allows it, marks every new session read-only via
// default_transaction_read_only — the ConnectHook-equivalent the teacher
// achieves with a single session-level SET on each freshly opened conn.
func OpenPostgres(ctx context.Context, dsn string, pool PoolConfig) (Adapter, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, newOpError(ErrDBConn, "", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, newOpError(ErrDBConn, "", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, newOpError(ErrDBConn, "", err)
	}
	_, err = conn.ExecContext(ctx, "SET default_transaction_read_only = on")
	_ = conn.Close()
	if err != nil {
		_ = db.Close()
		return nil, newOpError(ErrDBPermission, "", err)
	}

	return &postgresAdapter{db: db}, nil
}

func (a *postgresAdapter) Dialect() Dialect { return DialectPostgres }

func (a *postgresAdapter) Introspect(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{Tables: map[string]struct{}{}, Columns: map[string]map[string]struct{}{}}

	type row struct {
		TableName  string `db:"table_name"`
		ColumnName string `db:"column_name"`
	}
	var rows []row
	err := a.db.SelectContext(ctx, &rows, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, newOpError(classify(err), "", err)
	}

	for _, r := range rows {
		cat.Tables[r.TableName] = struct{}{}
		if cat.Columns[r.TableName] == nil {
			cat.Columns[r.TableName] = map[string]struct{}{}
		}
		cat.Columns[r.TableName][r.ColumnName] = struct{}{}
	}
	return cat, nil
}

func (a *postgresAdapter) Count(ctx context.Context, query string, cap int) (CountResult, error) {
	return smartCount(ctx, a.db, query, cap)
}

func (a *postgresAdapter) ExecutePreview(ctx context.Context, query string, limit int) (*ResultSet, error) {
	return executePreview(ctx, a.db, query, limit)
}

func (a *postgresAdapter) ExecuteStream(ctx context.Context, query string) (RowIterator, error) {
	return executeStream(ctx, a.db, query)
}

func (a *postgresAdapter) Close() error { return a.db.Close() }
