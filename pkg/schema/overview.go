package schema

// Overview is the JSON shape served at /api/schema/overview (spec.md §6.3):
// a flattened, read-only projection of the canonical schema for display in
// a client UI. It must round-trip every table and column name present in
// the loaded Schema (property R2).
type Overview struct {
	SchemaID         string          `json:"schema_id"`
	DatabaseType     DatabaseType    `json:"database_type"`
	SuggestedQueries []string        `json:"suggested_queries"`
	Tables           []TableOverview `json:"tables"`
}

// TableOverview is one table's projection within Overview.
type TableOverview struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Columns     []ColumnOverview `json:"columns"`
}

// ColumnOverview is one column's projection within TableOverview. Sample
// values are included so a UI can render representative data without a
// round trip to the target database.
type ColumnOverview struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type"`
	Description  string   `json:"description"`
	IsPrimaryKey bool     `json:"is_primary_key"`
	IsForeignKey bool     `json:"is_foreign_key"`
	SampleValues []string `json:"sample_values,omitempty"`
}

// Overview projects the Schema into the API's display shape, listing
// tables and columns in the name-sorted order recorded at Load time.
func (s *Schema) Overview() Overview {
	tables := make([]TableOverview, 0, len(s.TableNames))
	for _, tname := range s.TableNames {
		t := s.TableByName[tname]
		cols := make([]ColumnOverview, 0, len(t.ColumnNames))
		for _, cname := range t.ColumnNames {
			c := t.ColumnByName[cname]
			cols = append(cols, ColumnOverview{
				Name:         c.Name,
				DataType:     c.DataType,
				Description:  c.Description,
				IsPrimaryKey: c.IsPrimaryKey,
				IsForeignKey: c.IsForeignKey,
				SampleValues: c.SampleValues,
			})
		}
		tables = append(tables, TableOverview{
			Name:        t.Name,
			Description: t.Description,
			Columns:     cols,
		})
	}

	return Overview{
		SchemaID:         s.SchemaID,
		DatabaseType:     s.DatabaseType,
		SuggestedQueries: s.SuggestedQueries,
		Tables:           tables,
	}
}
