// Package interpret produces the chat response's markdown summary and
// visualization spec from executed query results (spec.md §4.9).
package interpret

import (
	"regexp"
	"strconv"
	"time"
)

// VizType is the chart kind chosen by SelectVisualization.
type VizType string

const (
	VizNone    VizType = "none"
	VizLine    VizType = "line"
	VizBar     VizType = "bar"
	VizPie     VizType = "pie"
	VizScatter VizType = "scatter"
)

// VizSpec describes the chosen chart, or VizNone for table-only display.
type VizSpec struct {
	Type        VizType `json:"type"`
	Title       string  `json:"title"`
	XColumn     string  `json:"x_column,omitempty"`
	YColumn     string  `json:"y_column,omitempty"`
	GroupColumn string  `json:"group_column,omitempty"`
	Reason      string  `json:"reason"`
}

var temporalNameRE = regexp.MustCompile(`(?i)timestamp|date|time`)

// SelectVisualization implements the rule-based selector from spec.md
// §4.9. It is pure and synchronous — no LLM call.
func SelectVisualization(rows [][]any, columns []string) *VizSpec {
	if len(rows) == 0 || (len(rows) == 1 && len(columns) == 1) {
		return &VizSpec{Type: VizNone, Reason: "no data or single scalar result"}
	}

	temporal := classifyTemporal(rows, columns)
	numeric := classifyNumeric(rows, columns)
	grouping := classifyLowCardinalityString(rows, columns)

	switch {
	case len(temporal) == 1 && len(numeric) >= 1:
		return &VizSpec{
			Type: VizLine, Title: "Trend over time",
			XColumn: temporal[0], YColumn: numeric[0],
			Reason: "one temporal column and at least one numeric column",
		}
	case len(grouping) == 1 && len(numeric) == 1:
		return &VizSpec{
			Type: VizBar, Title: "Comparison by " + grouping[0],
			XColumn: grouping[0], YColumn: numeric[0],
			Reason: "one grouping column and one numeric aggregate",
		}
	case len(grouping) == 1 && len(numeric) >= 1 && len(rows) <= 10:
		return &VizSpec{
			Type: VizPie, Title: "Share by " + grouping[0],
			GroupColumn: grouping[0], YColumn: numeric[0],
			Reason: "one grouping column, numeric share, ≤10 rows",
		}
	case len(numeric) == 2 && len(grouping) == 0:
		return &VizSpec{
			Type: VizScatter, Title: "Relationship",
			XColumn: numeric[0], YColumn: numeric[1],
			Reason: "two numeric columns, no obvious grouping",
		}
	default:
		return &VizSpec{Type: VizNone, Reason: "no rule matched; table only"}
	}
}

func classifyTemporal(rows [][]any, columns []string) []string {
	var out []string
	for i, name := range columns {
		if temporalNameRE.MatchString(name) || firstValueParsesAsDate(rows, i) {
			out = append(out, name)
		}
	}
	return out
}

func classifyNumeric(rows [][]any, columns []string) []string {
	var out []string
	for i, name := range columns {
		if columnIsNumeric(rows, i) {
			out = append(out, name)
		}
	}
	return out
}

func classifyLowCardinalityString(rows [][]any, columns []string) []string {
	var out []string
	for i, name := range columns {
		if columnIsLowCardinalityString(rows, i) {
			out = append(out, name)
		}
	}
	return out
}

func firstValueParsesAsDate(rows [][]any, col int) bool {
	if len(rows) == 0 || col >= len(rows[0]) {
		return false
	}
	s, ok := rows[0][col].(string)
	if !ok {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func columnIsNumeric(rows [][]any, col int) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if col >= len(row) {
			return false
		}
		if !isNumeric(row[col]) {
			return false
		}
	}
	return true
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(v.(string), 64)
		return err == nil
	case []byte:
		_, err := strconv.ParseFloat(string(v.([]byte)), 64)
		return err == nil
	default:
		return false
	}
}

func columnIsLowCardinalityString(rows [][]any, col int) bool {
	if len(rows) == 0 {
		return false
	}
	distinct := map[string]struct{}{}
	for _, row := range rows {
		if col >= len(row) {
			return false
		}
		s, ok := asString(row[col])
		if !ok {
			return false
		}
		distinct[s] = struct{}{}
		if len(distinct) > 10 {
			return false
		}
	}
	return true
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
