// Package embedstore persists per-table embeddings (spec.md §3.3) and
// answers cosine-similarity top-k queries for the schema analyzer.
package embedstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/queryhub/nl2sql/pkg/store"
)

// ErrEmpty indicates the namespace has no embeddings at all — the
// schema analyzer treats this as ErrSchemaEmpty and fails the request.
var ErrEmpty = errors.New("embedding store is empty for this schema")

// Store is a schema_id-scoped embedding table backed by pkg/store.
type Store struct {
	st       *store.Store
	schemaID string
}

// New binds a Store to one schema_id's namespace within st.
func New(st *store.Store, schemaID string) *Store {
	return &Store{st: st, schemaID: schemaID}
}

// Scored is one table's cosine-similarity score against a query vector.
type Scored struct {
	Table string
	Score float64
}

// Put writes (or overwrites) the embedding for table. Every entry in a
// namespace must share the same dimension; callers (the ingestion path)
// are responsible for that invariant, not the store.
func (s *Store) Put(ctx context.Context, table string, vec []float32) error {
	db := s.st.DB()
	_, err := db.ExecContext(ctx, s.upsertSQL(),
		s.schemaID, table, len(vec), encode(vec), nowFunc())
	return err
}

func (s *Store) upsertSQL() string {
	if s.st.Backend() == store.BackendPostgres {
		return `
			INSERT INTO table_embeddings (schema_id, table_name, dim, vector, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (schema_id, table_name)
			DO UPDATE SET dim = EXCLUDED.dim, vector = EXCLUDED.vector, created_at = EXCLUDED.created_at`
	}
	return `
		INSERT INTO table_embeddings (schema_id, table_name, dim, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (schema_id, table_name)
		DO UPDATE SET dim = excluded.dim, vector = excluded.vector, created_at = excluded.created_at`
}

// TopK scores query against every embedding in the namespace and
// returns the k highest by cosine similarity, descending. Returns
// ErrEmpty if the namespace has zero rows.
func (s *Store) TopK(ctx context.Context, query []float32, k int) ([]Scored, error) {
	db := s.st.DB()
	rows, err := db.QueryxContext(ctx, db.Rebind(`
		SELECT table_name, vector FROM table_embeddings WHERE schema_id = ?`),
		s.schemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Scored
	for rows.Next() {
		var table string
		var raw []byte
		if err := rows.Scan(&table, &raw); err != nil {
			return nil, err
		}
		vec, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for table %q: %w", table, err)
		}
		all = append(all, Scored{Table: table, Score: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrEmpty
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

// Count returns how many embeddings exist in the namespace.
func (s *Store) Count(ctx context.Context) (int, error) {
	db := s.st.DB()
	var n int
	err := db.GetContext(ctx, &n, db.Rebind(
		`SELECT COUNT(*) FROM table_embeddings WHERE schema_id = ?`), s.schemaID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encode(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decode(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}

var nowFunc = time.Now
