package dbadapter

import (
	"fmt"
	"strings"
)

// wrapCount builds the smart-count probe (spec.md §4.2): the original
// query capped at cap+1 rows, wrapped in COUNT(*). A result of cap+1
// means "more than cap rows exist"; anything less is the exact count.
func wrapCount(sql string, cap int) string {
	capped := fmt.Sprintf("SELECT * FROM (%s) AS _count_inner LIMIT %d", trimTrailingSemicolon(sql), cap+1)
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _count_subquery", capped)
}

// wrapLimit appends an outer LIMIT when the statement has none already.
// A naive substring check is unsafe (a literal could contain "limit"),
// so this only inspects the text after the last "limit" in the statement.
// It is a character check, not a tokenizer like pkg/safety/lexer.go.
func wrapLimit(sql string, limit int) string {
	if hasTrailingLimit(sql) {
		return sql
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _preview_subquery LIMIT %d", trimTrailingSemicolon(sql), limit)
}

func trimTrailingSemicolon(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
}

func hasTrailingLimit(sql string) bool {
	trimmed := strings.ToLower(trimTrailingSemicolon(sql))
	idx := strings.LastIndex(trimmed, "limit")
	if idx == -1 {
		return false
	}
	// crude but sufficient: a LIMIT clause near the tail of the statement
	// with nothing after it but digits/whitespace/offset.
	tail := trimmed[idx+len("limit"):]
	tail = strings.TrimSpace(tail)
	for _, r := range tail {
		if (r < '0' || r > '9') && r != ' ' && r != ',' && r != 'o' && r != 'f' && r != 's' && r != 'e' && r != 't' {
			return false
		}
	}
	return true
}
