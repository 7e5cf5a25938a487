// Package schema is the canonical schema model: tables, columns,
// relationships, curated suggestions, and the foreign-key graph built
// from them. The Schema value is process-wide and immutable after
// Load returns.
package schema

// SourceType identifies where the canonical schema was derived from.
type SourceType string

const (
	SourceDatabase SourceType = "database"
	SourceExcel    SourceType = "excel"
)

// DatabaseType drives SQL dialect hints for the generator and adapter.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// Schema is the canonical, process-wide representation loaded from JSON.
type Schema struct {
	SchemaID         string       `json:"schema_id"`
	SourceType       SourceType   `json:"source_type"`
	DatabaseType     DatabaseType `json:"database_type"`
	SuggestedQueries []string     `json:"suggested_queries"`

	// TableNames lists the tables sorted by name (the JSON declaration
	// order is not kept); TableByName is the lookup index built at Load
	// time.
	TableNames  []string
	TableByName map[string]*TableDef

	// FKGraph is built once at Load time from every table's relationships.
	FKGraph *FKGraph
}

// TableDef describes one table in the canonical schema.
type TableDef struct {
	Name        string
	Description string

	// ColumnNames lists the columns sorted by name (the JSON declaration
	// order is not kept); ColumnByName is the index.
	ColumnNames  []string
	ColumnByName map[string]*ColumnDef

	Relationships []Relationship
}

// ColumnDef describes one column in a table.
type ColumnDef struct {
	Name         string
	DataType     string
	Description  string
	IsPrimaryKey bool
	IsForeignKey bool
	SampleValues []string
}

// Relationship is an outbound foreign key: FromColumn in the owning
// table references ReferencedColumn in ReferencedTable.
type Relationship struct {
	FromColumn       string `json:"from_column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table looks up a table by exact, case-preserving name.
func (s *Schema) Table(name string) (*TableDef, bool) {
	t, ok := s.TableByName[name]
	return t, ok
}
