package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/schema"
)

const driftTestSchema = `{
	"schema_id": "acme",
	"suggested_queries": ["show load balancers"],
	"tables": {
		"load_balancers": {
			"description": "load balancers",
			"columns": {
				"id": {"data_type": "integer", "is_primary_key": true},
				"datacenter": {"data_type": "text"}
			}
		}
	}
}`

func loadDriftSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.LoadBytes([]byte(driftTestSchema))
	require.NoError(t, err)
	return s
}

func TestCheckDrift_NoMissingEntitiesPasses(t *testing.T) {
	s := loadDriftSchema(t)
	cat := &dbadapter.Catalog{
		Tables: map[string]struct{}{"load_balancers": {}, "extra_table": {}},
		Columns: map[string]map[string]struct{}{
			"load_balancers": {"id": {}, "datacenter": {}, "extra_col": {}},
		},
	}
	assert.NoError(t, checkDrift(s, cat))
}

func TestCheckDrift_MissingTableFails(t *testing.T) {
	s := loadDriftSchema(t)
	cat := &dbadapter.Catalog{
		Tables:  map[string]struct{}{},
		Columns: map[string]map[string]struct{}{},
	}
	err := checkDrift(s, cat)
	require.Error(t, err)
	var driftErr *DriftError
	require.ErrorAs(t, err, &driftErr)
	assert.Contains(t, driftErr.Missing, `table "load_balancers"`)
}

func TestCheckDrift_MissingColumnFails(t *testing.T) {
	s := loadDriftSchema(t)
	cat := &dbadapter.Catalog{
		Tables: map[string]struct{}{"load_balancers": {}},
		Columns: map[string]map[string]struct{}{
			"load_balancers": {"id": {}},
		},
	}
	err := checkDrift(s, cat)
	require.Error(t, err)
	var driftErr *DriftError
	require.ErrorAs(t, err, &driftErr)
	assert.Contains(t, driftErr.Missing, `column "load_balancers"."datacenter"`)
	assert.Contains(t, err.Error(), "schema drift detected")
}
