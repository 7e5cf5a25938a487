package pipeline

import (
	"context"
	"errors"

	"github.com/queryhub/nl2sql/pkg/sqlcache"
)

// LookupCache is the cache-lookup node: on hit it populates GeneratedSQL
// and short-circuits straight to the validator; on miss it falls through
// to the schema analyzer (spec.md §4.5).
func LookupCache(ctx context.Context, deps *Deps, state *State) (*State, error) {
	normalized := sqlcache.Normalize(state.RewrittenQuery)

	entry, err := deps.SQLCache.Get(ctx, normalized)
	if err != nil {
		if errors.Is(err, sqlcache.ErrMiss) {
			state.CacheHitType = CacheHitNone
			return state, nil
		}
		// Cache failures are logged and treated as miss (spec.md §7).
		deps.Logger.Warn("sql cache lookup failed, treating as miss", "error", err)
		state.CacheHitType = CacheHitNone
		return state, nil
	}

	state.CacheHitType = CacheHitSQL
	state.GeneratedSQL = entry.GeneratedSQL
	return state, nil
}
