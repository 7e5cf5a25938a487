package dbadapter

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// smartCount runs the COUNT(*) probe described in spec.md §4.2: exact up
// to cap, Unknown sentinel beyond it. It queries cap+1 so the distinction
// is a single round trip.
func smartCount(ctx context.Context, db *sqlx.DB, query string, cap int) (CountResult, error) {
	probe := wrapCount(query, cap)

	var n int
	if err := db.QueryRowContext(ctx, probe).Scan(&n); err != nil {
		return CountResult{}, newOpError(classify(err), query, err)
	}
	if n > cap {
		return CountResult{Unknown: true}, nil
	}
	return CountResult{Exact: n}, nil
}

// executePreview runs query wrapped in an outer LIMIT and materializes
// the bounded result set.
func executePreview(ctx context.Context, db *sqlx.DB, query string, limit int) (*ResultSet, error) {
	wrapped := wrapLimit(query, limit)

	rows, err := db.QueryxContext(ctx, wrapped)
	if err != nil {
		return nil, newOpError(classify(err), query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, newOpError(classify(err), query, err)
	}

	rs := &ResultSet{Columns: cols, Rows: make([][]any, 0, limit)}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, newOpError(classify(err), query, err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, newOpError(classify(err), query, err)
	}
	return rs, nil
}

// executeStream runs query unbounded and returns a RowIterator for CSV
// export. No timeout is applied here; each Next call uses the context its
// caller passes, and the CSV handler passes context.Background(), so
// chunk reads during a CSV export have no per-chunk timeout.
func executeStream(ctx context.Context, db *sqlx.DB, query string) (RowIterator, error) {
	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, newOpError(classify(err), query, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, newOpError(classify(err), query, err)
	}
	return &sqlxRowIterator{rows: rows, columns: cols}, nil
}

type sqlxRowIterator struct {
	rows    *sqlx.Rows
	columns []string
	current []any
	err     error
}

func (it *sqlxRowIterator) Columns() []string { return it.columns }

func (it *sqlxRowIterator) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		it.err = ctx.Err()
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	vals, err := it.rows.SliceScan()
	if err != nil {
		it.err = err
		return false
	}
	it.current = vals
	return true
}

func (it *sqlxRowIterator) Row() []any { return it.current }
func (it *sqlxRowIterator) Err() error { return it.err }
func (it *sqlxRowIterator) Close() error {
	return it.rows.Close()
}
