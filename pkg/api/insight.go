package api

import (
	"context"

	"github.com/queryhub/nl2sql/pkg/interpret"
	"github.com/queryhub/nl2sql/pkg/pipeline"
	"github.com/queryhub/nl2sql/pkg/session"
)

// interpretRows runs the same visualization/insight logic pkg/pipeline
// uses mid-graph, but against a previously cached result set instead of
// a live State — used by the /api/interpret endpoint; the SSE chat
// endpoint's analysis event comes from pipeline.InterpretAsync instead.
func interpretRows(ctx context.Context, deps *pipeline.Deps, entry *session.QueryCacheEntry) (*interpret.VizSpec, string) {
	viz := interpret.SelectVisualization(entry.Rows, entry.Columns)

	text, err := interpret.Summarize(ctx, deps.LLM, entry.OriginalQuery, entry.Rows, entry.Columns)
	if err != nil {
		return nil, "Analysis temporarily unavailable."
	}
	return viz, text
}
