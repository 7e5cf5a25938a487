package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/session"
	"github.com/queryhub/nl2sql/pkg/sqlcache"
)

// Execute is the C12 node: runs the smart count and the bounded
// preview, then caches the rows into the session's query cache keyed by
// a fresh query_id (spec.md §4.8).
func Execute(ctx context.Context, deps *Deps, state *State, sess *session.Session) (*State, error) {
	countResult, err := deps.Adapter.Count(ctx, state.GeneratedSQL, deps.Limits.SmartCountCap)
	if err != nil {
		return classifyExecError(state, err)
	}

	rs, err := deps.Adapter.ExecutePreview(ctx, state.GeneratedSQL, deps.Limits.MaxCacheRows)
	if err != nil {
		return classifyExecError(state, err)
	}

	state.Columns = rs.Columns
	state.Rows = rs.Rows
	if countResult.Unknown {
		state.TotalCountHint = nil
	} else {
		n := countResult.Exact
		state.TotalCountHint = &n
	}

	state.QueryID = uuid.New().String()
	sess.PutQuery(state.QueryID, &session.QueryCacheEntry{
		SQL:             state.GeneratedSQL,
		OriginalQuery:   state.OriginalQuery,
		NormalizedQuery: sqlcache.Normalize(state.RewrittenQuery),
		Rows:            state.Rows,
		Columns:         state.Columns,
		TotalCount:      state.TotalCountHint,
	})

	return state, nil
}

func classifyExecError(state *State, err error) (*State, error) {
	var opErr *dbadapter.OpError
	var kind Kind
	switch {
	case errors.As(err, &opErr) && errors.Is(opErr.Sentinel, dbadapter.ErrDBTimeout):
		kind = KindDBTimeout
	case errors.As(err, &opErr) && errors.Is(opErr.Sentinel, dbadapter.ErrDBSyntax):
		kind = KindDBSyntax
	case errors.As(err, &opErr) && errors.Is(opErr.Sentinel, dbadapter.ErrDBPermission):
		kind = KindDBPermission
	default:
		kind = KindDBConn
	}
	state.ExecutionError = err.Error()
	return state, newStageError("executor", kind, "query execution failed", err)
}
