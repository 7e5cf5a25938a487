package pipeline

import (
	"context"
	"errors"

	"github.com/queryhub/nl2sql/pkg/session"
)

// maxRegenerations is the global retry budget shared across validator and
// executor failures (spec.md §4.10).
const maxRegenerations = 3

// Run drives a single request through the full graph and awaits the
// final interpretation synchronously, for callers that want one
// response (the REST /api/generate-sql handler).
//
//	start -> intent
//	intent --general--> interpreter -> end
//	intent --sql|mixed--> cache
//	cache  --hit--> validator
//	cache  --miss--> schema -> generator -> validator
//	validator --ok--> executor -> interpreter -> end
//	validator --fail--> generator (retry, budget permitting) -> validator
//	executor  --fail--> generator (retry, budget permitting) -> validator
func Run(ctx context.Context, deps *Deps, sess *session.Session, req *State) (*State, error) {
	state, err := RunCore(ctx, deps, sess, req)
	if err != nil {
		return nil, err
	}
	return Interpret(ctx, deps, state), nil
}

// RunCore drives the graph through execution but stops short of the
// insight LLM call, returning as soon as generated_sql and the preview
// rows are ready. This lets the SSE transport stream the sql/data events
// while InterpretAsync overlaps the insight call in the background
// (spec.md §4.9, §9's "bounded channel between the pipeline task and the
// HTTP writer"). Run wraps RunCore with a synchronous Interpret for
// single-response callers.
//
// Session history/query-cache writes that must survive cancellation are
// performed by the caller after RunCore returns (spec.md §5): RunCore
// itself never mutates sess's conversation history, only its query cache
// via Execute, and only after Execute itself has fully succeeded.
func RunCore(ctx context.Context, deps *Deps, sess *session.Session, req *State) (*State, error) {
	state := req
	logger := deps.Logger.With("session_id", sess.ID)

	history := sess.RecentExchanges(deps.Limits.SessionHistoryUse)
	state, err := ClassifyAndRewrite(ctx, deps, state, history)
	if err != nil {
		logger.Error("intent classification failed", "error", err)
		return nil, err
	}
	logger.Info("intent classified", "intent", state.Intent)
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	if state.Intent == IntentGeneral {
		return state, nil
	}

	state, err = LookupCache(ctx, deps, state)
	if err != nil {
		return nil, err
	}
	logger.Info("cache lookup done", "hit", state.CacheHitType)

	if state.CacheHitType == CacheHitNone {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		state, err = AnalyzeSchema(ctx, deps, state)
		if err != nil {
			logger.Error("schema analysis failed", "error", err)
			return nil, err
		}
		state, err = GenerateSQL(ctx, deps, state, deps.Adapter.Dialect(), "")
		if err != nil {
			logger.Error("sql generation failed", "error", err)
			return nil, err
		}
	}

	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		state = ValidateSQL(deps, state)
		if !state.ValidationOK {
			if state.Retries >= maxRegenerations {
				// Exhausted retries surface as SQLGen carrying the last
				// validator reason (spec.md §7), not as a bare Validation
				// error — the generator is what ultimately failed to comply.
				logger.Error("validation retries exhausted", "reason", state.ValidationError)
				return nil, newStageError("generator", KindSQLGen, "exhausted regenerations", errors.New(state.ValidationError))
			}
			state.Retries++
			logger.Warn("sql failed validation, regenerating", "reason", state.ValidationError, "retry", state.Retries)
			state, err = GenerateSQL(ctx, deps, state, deps.Adapter.Dialect(), state.ValidationError)
			if err != nil {
				return nil, err
			}
			continue
		}

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		state, execErr := Execute(ctx, deps, state, sess)
		if execErr != nil {
			var stageErr *StageError
			if !errors.As(execErr, &stageErr) {
				return nil, execErr
			}
			// Only a syntax error is plausibly the generator's fault and
			// worth a retry; timeouts/permission/connection errors fail
			// immediately regardless of remaining budget (spec.md §7).
			if stageErr.Kind != KindDBSyntax || state.Retries >= maxRegenerations {
				logger.Error("execution failed", "kind", stageErr.Kind, "error", stageErr.Cause)
				return nil, stageErr
			}
			state.Retries++
			logger.Warn("sql failed execution, regenerating", "reason", state.ExecutionError, "retry", state.Retries)
			var genErr error
			state, genErr = GenerateSQL(ctx, deps, state, deps.Adapter.Dialect(), state.ExecutionError)
			if genErr != nil {
				return nil, genErr
			}
			continue
		}

		break
	}

	logger.Info("query executed", "query_id", state.QueryID, "rows", len(state.Rows))

	// Only a freshly (re)generated SQL is worth an upsert; an untouched
	// cache hit already has its hit count bumped by LookupCache's Get.
	if state.CacheHitType == CacheHitNone || state.Retries > 0 {
		if err := CacheGeneratedSQL(ctx, deps, state); err != nil {
			// Cache-write failure doesn't invalidate an otherwise successful
			// run (spec.md §7): the result still ships, just uncached.
			logger.Warn("sql cache upsert failed", "error", err)
		}
	}

	return state, nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return newStageError("graph", KindCancelled, "request cancelled", ctx.Err())
	default:
		return nil
	}
}
