package api

import (
	"github.com/queryhub/nl2sql/pkg/interpret"
	"github.com/queryhub/nl2sql/pkg/schema"
)

// GenerateSQLResponse is returned by POST /api/generate-sql.
type GenerateSQLResponse struct {
	QueryID        string           `json:"query_id,omitempty"`
	SQL            *string          `json:"sql"`
	Intent         string           `json:"intent"`
	GeneralAnswer  string           `json:"general_answer,omitempty"`
	SchemaOverview *schema.Overview `json:"schema_overview,omitempty"`
}

// ExecuteResponse is returned by GET /api/execute/{query_id}.
type ExecuteResponse struct {
	Data       [][]any  `json:"data"`
	Columns    []string `json:"columns"`
	TotalCount any      `json:"total_count"` // int, or the string "unknown"
	Truncated  bool     `json:"truncated"`
}

// InterpretResponse is returned by POST /api/interpret/{query_id}.
type InterpretResponse struct {
	Interpretation string             `json:"interpretation"`
	Visualization  *interpret.VizSpec `json:"visualization"`
	DataTruncated  bool               `json:"data_truncated"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	CacheSize         int    `json:"cache_size"`
	DatabaseConnected bool   `json:"database_connected"`
	SchemaID          string `json:"schema_id"`
}

// ErrorResponse is the shape of every error response (spec.md §6.3).
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Stage     string `json:"stage,omitempty"`
}
