package pipeline

import (
	"context"
	"errors"

	"github.com/queryhub/nl2sql/pkg/schema"
)

// AnalyzeSchema is the C10 node wrapper: runs the analyzer and copies
// its output onto State.
func AnalyzeSchema(ctx context.Context, deps *Deps, state *State) (*State, error) {
	result, err := deps.Analyzer.Analyze(ctx, state.RewrittenQuery)
	if err != nil {
		switch {
		case errors.Is(err, schema.ErrSchemaEmptyStore):
			return nil, newStageError("schema", KindSchemaEmpty, "embedding store is empty", err)
		case errors.Is(err, schema.ErrSchemaEmbed):
			return nil, newStageError("schema", KindSchemaEmbed, "embedding call failed", err)
		default:
			return nil, newStageError("schema", KindSchemaEmpty, "schema analysis failed", err)
		}
	}

	state.RelevantTables = result.RelevantTables
	state.SchemaContext = result.SchemaContext
	state.TokenEstimate = result.TokenEstimate
	return state, nil
}
