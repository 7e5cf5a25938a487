// Package sqlcache persists the normalized-query → generated-SQL cache
// described in spec.md §3.4: one entry per schema_id + normalized query,
// with hit counts and an explicit invalidation path for thumbs-down
// feedback.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/queryhub/nl2sql/pkg/store"
)

// ErrMiss is returned by Get when no entry exists for the query.
var ErrMiss = errors.New("sql cache miss")

// Entry is one cache row.
type Entry struct {
	GeneratedSQL string
	HitCount     int
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// Cache is a schema_id-scoped SQL cache backed by pkg/store.
type Cache struct {
	st       *store.Store
	schemaID string
}

// New binds a Cache to one schema_id's namespace within st.
func New(st *store.Store, schemaID string) *Cache {
	return &Cache{st: st, schemaID: schemaID}
}

// Normalize lowercases and collapses whitespace in a rewritten query, as
// required by spec.md §3.4 before it is used as a cache key.
func Normalize(query string) string {
	collapsed := whitespaceRE.ReplaceAllString(strings.TrimSpace(query), " ")
	return strings.ToLower(collapsed)
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Get looks up normalized in the cache. Returns ErrMiss, not a generic
// error, when the entry does not exist — callers use errors.Is to fall
// through to the schema analyzer.
func (c *Cache) Get(ctx context.Context, normalized string) (*Entry, error) {
	db := c.st.DB()
	row := db.QueryRowxContext(ctx, db.Rebind(`
		SELECT generated_sql, hit_count, created_at, last_used_at
		FROM sql_cache
		WHERE schema_id = ? AND normalized_query = ?`),
		c.schemaID, normalized)

	var e Entry
	if err := row.Scan(&e.GeneratedSQL, &e.HitCount, &e.CreatedAt, &e.LastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, err
	}

	if _, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE sql_cache SET hit_count = hit_count + 1, last_used_at = ?
		WHERE schema_id = ? AND normalized_query = ?`),
		nowFunc(), c.schemaID, normalized); err != nil {
		return nil, err
	}

	return &e, nil
}

// Put upserts normalized → sql. Per spec.md §3.4/§4.5: if an entry
// already exists with the same SQL, only its hit_count/last_used_at
// advance; if the SQL differs, the row is overwritten and hit_count
// resets, since the cached answer for that query has materially changed.
func (c *Cache) Put(ctx context.Context, normalized, generatedSQL string) error {
	now := nowFunc()

	existing, err := c.Get(ctx, normalized)
	if err != nil && !errors.Is(err, ErrMiss) {
		return err
	}
	if err == nil && existing.GeneratedSQL == generatedSQL {
		// Get already incremented hit_count/last_used_at above.
		return nil
	}

	_, err = c.st.DB().ExecContext(ctx, c.upsertSQL(),
		c.schemaID, normalized, generatedSQL, now, now)
	return err
}

func (c *Cache) upsertSQL() string {
	if c.st.Backend() == store.BackendPostgres {
		return `
			INSERT INTO sql_cache (schema_id, normalized_query, generated_sql, hit_count, created_at, last_used_at)
			VALUES ($1, $2, $3, 0, $4, $5)
			ON CONFLICT (schema_id, normalized_query)
			DO UPDATE SET generated_sql = EXCLUDED.generated_sql, hit_count = 0, last_used_at = EXCLUDED.last_used_at`
	}
	return `
		INSERT INTO sql_cache (schema_id, normalized_query, generated_sql, hit_count, created_at, last_used_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (schema_id, normalized_query)
		DO UPDATE SET generated_sql = excluded.generated_sql, hit_count = 0, last_used_at = excluded.last_used_at`
}

// Invalidate deletes the entry for normalized, called by the feedback
// endpoint on thumbs-down (spec.md §3.4, DESIGN.md open-question decision:
// feedback-down only invalidates sqlcache, it does not touch embeddings).
func (c *Cache) Invalidate(ctx context.Context, normalized string) error {
	db := c.st.DB()
	_, err := db.ExecContext(ctx, db.Rebind(`
		DELETE FROM sql_cache WHERE schema_id = ? AND normalized_query = ?`),
		c.schemaID, normalized)
	return err
}

// nowFunc is a seam for tests; production uses time.Now.
var nowFunc = time.Now
