package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// wireSchema matches the external JSON envelope (spec.md §6.1) before
// it is indexed into the ordered Schema/TableDef/ColumnDef types in types.go.
type wireSchema struct {
	SchemaID         string                `json:"schema_id"`
	SourceType       SourceType            `json:"source_type"`
	DatabaseType     DatabaseType          `json:"database_type"`
	Tables           map[string]*wireTable `json:"tables"`
	SuggestedQueries []string              `json:"suggested_queries"`
}

type wireTable struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Columns       map[string]*wireColumn `json:"columns"`
	Relationships []Relationship         `json:"relationships"`
}

type wireColumn struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type"`
	Description  string   `json:"description"`
	IsPrimaryKey bool     `json:"is_primary_key"`
	IsForeignKey bool     `json:"is_foreign_key"`
	SampleValues []string `json:"sample_values"`
}

// Load parses the canonical schema JSON at path, validates the
// invariants from spec.md §3.1, and builds the FK graph (§3.2).
//
// Go's encoding/json does not preserve object key order, so the wire
// format's "tables"/"columns" maps are sorted by their map keys to give
// deterministic, reproducible ordering across loads; the order in which
// the JSON file declares tables and columns is not kept.
func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read canonical schema %s: %w", path, err)
	}

	var wire wireSchema
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse canonical schema %s: %w", path, err)
	}

	return fromWire(&wire)
}

// LoadBytes parses canonical schema JSON already in memory (used by tests
// and by any future non-file ingestion path).
func LoadBytes(raw []byte) (*Schema, error) {
	var wire wireSchema
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse canonical schema: %w", err)
	}
	return fromWire(&wire)
}

func fromWire(wire *wireSchema) (*Schema, error) {
	if wire.SchemaID == "" {
		return nil, newValidationError("schema_id must not be empty")
	}
	if len(wire.SuggestedQueries) == 0 {
		return nil, newValidationError("suggested_queries must not be empty")
	}

	tableNames := sortedKeys(wire.Tables)
	tableByName := make(map[string]*TableDef, len(wire.Tables))

	for _, name := range tableNames {
		wt := wire.Tables[name]
		colNames := sortedKeys(wt.Columns)
		colByName := make(map[string]*ColumnDef, len(wt.Columns))
		for _, cn := range colNames {
			wc := wt.Columns[cn]
			if len(wc.SampleValues) > 10 {
				return nil, newValidationError(
					"table %q column %q has more than 10 sample values", name, cn)
			}
			colByName[cn] = &ColumnDef{
				Name:         valueOr(wc.Name, cn),
				DataType:     wc.DataType,
				Description:  wc.Description,
				IsPrimaryKey: wc.IsPrimaryKey,
				IsForeignKey: wc.IsForeignKey,
				SampleValues: wc.SampleValues,
			}
		}

		tableByName[name] = &TableDef{
			Name:          valueOr(wt.Name, name),
			Description:   wt.Description,
			ColumnNames:   colNames,
			ColumnByName:  colByName,
			Relationships: wt.Relationships,
		}
	}

	// Every relationship's referenced_table must resolve (spec.md P1).
	for _, name := range tableNames {
		for _, rel := range tableByName[name].Relationships {
			if _, ok := tableByName[rel.ReferencedTable]; !ok {
				return nil, newValidationError(
					"table %q relationship references unknown table %q",
					name, rel.ReferencedTable)
			}
		}
	}

	s := &Schema{
		SchemaID:         wire.SchemaID,
		SourceType:       wire.SourceType,
		DatabaseType:     wire.DatabaseType,
		SuggestedQueries: wire.SuggestedQueries,
		TableNames:       tableNames,
		TableByName:      tableByName,
	}
	s.FKGraph = BuildFKGraph(s)
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sortStrings(names)
	return names
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
