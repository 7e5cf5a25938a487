package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSchemaJSON = `{
	"schema_id": "acme-sales",
	"source_type": "database",
	"database_type": "postgres",
	"suggested_queries": ["top 5 customers by revenue"],
	"tables": {
		"orders": {
			"name": "orders",
			"description": "customer orders",
			"columns": {
				"id": {"name": "id", "data_type": "integer", "is_primary_key": true},
				"customer_id": {"name": "customer_id", "data_type": "integer", "is_foreign_key": true}
			},
			"relationships": [
				{"from_column": "customer_id", "referenced_table": "customers", "referenced_column": "id"}
			]
		},
		"customers": {
			"name": "customers",
			"description": "customer accounts",
			"columns": {
				"id": {"name": "id", "data_type": "integer", "is_primary_key": true},
				"name": {"name": "name", "data_type": "text", "sample_values": ["Acme Corp"]}
			}
		}
	}
}`

func TestLoadBytes_ValidSchema(t *testing.T) {
	s, err := LoadBytes([]byte(validSchemaJSON))
	require.NoError(t, err)

	assert.Equal(t, "acme-sales", s.SchemaID)
	assert.Equal(t, DatabasePostgres, s.DatabaseType)
	assert.ElementsMatch(t, []string{"orders", "customers"}, s.TableNames)

	orders, ok := s.Table("orders")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"id", "customer_id"}, orders.ColumnNames)

	assert.Equal(t, []string{"customers"}, s.FKGraph.Outbound("orders"))
	assert.Equal(t, []string{"orders"}, s.FKGraph.Inbound("customers"))
}

func TestLoadBytes_EmptySchemaIDRejected(t *testing.T) {
	_, err := LoadBytes([]byte(`{"suggested_queries":["q"],"tables":{}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Reason, "schema_id")
}

func TestLoadBytes_EmptySuggestedQueriesRejected(t *testing.T) {
	_, err := LoadBytes([]byte(`{"schema_id":"x","tables":{}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}

func TestLoadBytes_DanglingRelationshipRejected(t *testing.T) {
	raw := `{
		"schema_id": "x",
		"suggested_queries": ["q"],
		"tables": {
			"orders": {
				"relationships": [
					{"from_column": "customer_id", "referenced_table": "ghost", "referenced_column": "id"}
				]
			}
		}
	}`
	_, err := LoadBytes([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadBytes_TooManySampleValuesRejected(t *testing.T) {
	raw := `{
		"schema_id": "x",
		"suggested_queries": ["q"],
		"tables": {
			"t": {
				"columns": {
					"c": {"sample_values": ["1","2","3","4","5","6","7","8","9","10","11"]}
				}
			}
		}
	}`
	_, err := LoadBytes([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/schema.json")
	require.Error(t, err)
}
