package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOverview_RoundTripsEveryTableAndColumn is property R2: every table
// and column name present in the loaded Schema must appear in Overview.
func TestOverview_RoundTripsEveryTableAndColumn(t *testing.T) {
	s, err := LoadBytes([]byte(validSchemaJSON))
	require.NoError(t, err)

	ov := s.Overview()
	assert.Equal(t, s.SchemaID, ov.SchemaID)
	assert.Equal(t, s.SuggestedQueries, ov.SuggestedQueries)
	assert.Len(t, ov.Tables, len(s.TableNames))

	seenTables := make(map[string]TableOverview)
	for _, to := range ov.Tables {
		seenTables[to.Name] = to
	}

	for _, tname := range s.TableNames {
		to, ok := seenTables[tname]
		require.True(t, ok, "table %q missing from overview", tname)

		def := s.TableByName[tname]
		seenCols := make(map[string]struct{})
		for _, co := range to.Columns {
			seenCols[co.Name] = struct{}{}
		}
		for _, cname := range def.ColumnNames {
			_, ok := seenCols[cname]
			assert.True(t, ok, "table %q column %q missing from overview", tname, cname)
		}
	}
}

func TestOverview_PreservesSampleValues(t *testing.T) {
	s, err := LoadBytes([]byte(validSchemaJSON))
	require.NoError(t, err)

	ov := s.Overview()
	for _, to := range ov.Tables {
		if to.Name != "customers" {
			continue
		}
		for _, co := range to.Columns {
			if co.Name == "name" {
				assert.Equal(t, []string{"Acme Corp"}, co.SampleValues)
			}
		}
	}
}
