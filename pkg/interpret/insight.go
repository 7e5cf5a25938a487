package interpret

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryhub/nl2sql/pkg/llm"
)

const maxSummaryRows = 50

// IsTrivial reports whether a query is a simple listing that doesn't
// warrant an LLM summarization call (spec.md §4.9): no aggregation, no
// temporal column, single-column-of-identifiers shape is the common case
// but the rule here is schema-driven rather than SQL-text-driven — it
// looks at the shape of the result set instead of re-parsing the SQL.
func IsTrivial(rows [][]any, columns []string) bool {
	if len(classifyNumeric(rows, columns)) > 0 && len(columns) > 1 {
		return false // a numeric column alongside others suggests an aggregate
	}
	if len(classifyTemporal(rows, columns)) > 0 {
		return false
	}
	return true
}

// Summarize produces the markdown insight text for a result set. Trivial
// queries skip the LLM call entirely and return a fixed "Found N items"
// string, per spec.md §4.9.
func Summarize(ctx context.Context, client llm.Client, query string, rows [][]any, columns []string) (string, error) {
	if IsTrivial(rows, columns) {
		return fmt.Sprintf("Found %d item(s).", len(rows)), nil
	}

	sample := rows
	if len(sample) > maxSummaryRows {
		sample = sample[:maxSummaryRows]
	}

	prompt := buildSummaryPrompt(query, columns, sample)
	text, err := client.Complete(ctx, llm.CompleteRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Summarize query results in under 200 words with up to 5 markdown bullet findings. No preamble."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("summarize insight: %w", err)
	}
	return text, nil
}

func buildSummaryPrompt(query string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nColumns: %s\nRows (%d shown):\n", query, strings.Join(columns, ", "), len(rows))
	for _, row := range rows {
		fmt.Fprintf(&b, "%v\n", row)
	}
	return b.String()
}

// AsyncSummarize starts Summarize in a goroutine and returns a channel
// carrying exactly one result, matching spec.md §9's "bounded
// channel/queue between the pipeline task and the HTTP writer" pattern
// used for the insight call specifically (the DB/SQL work stays
// synchronous; only this LLM call is overlapped with streaming).
func AsyncSummarize(ctx context.Context, client llm.Client, query string, rows [][]any, columns []string) <-chan SummaryResult {
	out := make(chan SummaryResult, 1)
	go func() {
		defer close(out)
		text, err := Summarize(ctx, client, query, rows, columns)
		out <- SummaryResult{Text: text, Err: err}
	}()
	return out
}

// SummaryResult is the value delivered on AsyncSummarize's channel.
type SummaryResult struct {
	Text string
	Err  error
}
