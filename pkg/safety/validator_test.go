package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
)

func TestValidate_PlainSelectPasses(t *testing.T) {
	r := Validate("SELECT * FROM orders WHERE status = 'shipped'", dbadapter.DialectPostgres)
	assert.True(t, r.OK)
}

func TestValidate_CTEPasses(t *testing.T) {
	r := Validate("WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", dbadapter.DialectSQLite)
	assert.True(t, r.OK)
}

func TestValidate_InsertRejected(t *testing.T) {
	r := Validate("INSERT INTO orders (id) VALUES (1)", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_BlockedKeywordInsideStringLiteralIsIgnored(t *testing.T) {
	// The literal contains the word DROP, which must not trigger rejection —
	// this is the whole point of a token-aware lexer over a naive substring scan.
	r := Validate("SELECT * FROM notes WHERE body = 'please DROP by later'", dbadapter.DialectPostgres)
	assert.True(t, r.OK)
}

func TestValidate_MultiStatementRejected(t *testing.T) {
	r := Validate("SELECT 1; DROP TABLE orders", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_SingleTrailingSemicolonAllowed(t *testing.T) {
	r := Validate("SELECT * FROM orders;", dbadapter.DialectPostgres)
	assert.True(t, r.OK)
}

func TestValidate_SqliteMasterRejected(t *testing.T) {
	r := Validate("SELECT * FROM sqlite_master", dbadapter.DialectSQLite)
	assert.False(t, r.OK)
}

func TestValidate_PgCatalogDottedNameRejected(t *testing.T) {
	r := Validate("SELECT * FROM pg_catalog.pg_tables", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_InformationSchemaRejected(t *testing.T) {
	r := Validate("SELECT * FROM information_schema.tables", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_UpdateDeleteDropAlterAllRejected(t *testing.T) {
	for _, sql := range []string{
		"UPDATE orders SET status = 'x'",
		"DELETE FROM orders",
		"DROP TABLE orders",
		"ALTER TABLE orders ADD COLUMN x INT",
		"ATTACH DATABASE 'x' AS y",
		"PRAGMA table_info(orders)",
	} {
		r := Validate(sql, dbadapter.DialectSQLite)
		assert.False(t, r.OK, "expected rejection for: %s", sql)
	}
}

func TestValidate_NonSelectStartRejected(t *testing.T) {
	r := Validate("EXPLAIN SELECT * FROM orders", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_EmptyQueryRejected(t *testing.T) {
	r := Validate("", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}

func TestValidate_BlockLineCommentHidingSemicolon(t *testing.T) {
	// A second statement hidden after a line comment must still be caught:
	// the comment doesn't remove the semicolon token, only the comment text.
	r := Validate("SELECT 1; -- comment\nDROP TABLE orders", dbadapter.DialectPostgres)
	assert.False(t, r.OK)
}
