package pipeline

import (
	"context"
	"fmt"

	"github.com/queryhub/nl2sql/pkg/interpret"
)

// Interpret is the C13 node wrapper. Visualization selection is
// synchronous and pure; the insight text call is awaited here too, for
// callers that want the full result in one shot (Run).
func Interpret(ctx context.Context, deps *Deps, state *State) *State {
	if state.Intent == IntentGeneral {
		state.Interpretation = state.GeneralAnswer
		state.Visualization = nil
		return state
	}

	state.Visualization = interpret.SelectVisualization(state.Rows, state.Columns)

	text, err := interpret.Summarize(ctx, deps.LLM, state.RewrittenQuery, state.Rows, state.Columns)
	state.Interpretation = finishInterpretation(state, text, err)
	return state
}

// InterpretAsync starts the insight call (for sql/mixed) or finishes the
// trivial general-intent case in a goroutine, returning a channel that
// delivers state once Interpretation and Visualization are set. The
// caller starts this right after RunCore returns and emits its own
// sql/data events before receiving from the channel, overlapping the
// insight LLM call with the transport write (spec.md §4.9).
func InterpretAsync(ctx context.Context, deps *Deps, state *State) <-chan *State {
	out := make(chan *State, 1)

	if state.Intent == IntentGeneral {
		go func() {
			defer close(out)
			out <- Interpret(ctx, deps, state)
		}()
		return out
	}

	state.Visualization = interpret.SelectVisualization(state.Rows, state.Columns)
	results := interpret.AsyncSummarize(ctx, deps.LLM, state.RewrittenQuery, state.Rows, state.Columns)

	go func() {
		defer close(out)
		result := <-results
		state.Interpretation = finishInterpretation(state, result.Text, result.Err)
		out <- state
	}()
	return out
}

// finishInterpretation applies the non-fatal-error fallback and the
// mixed-intent answer prefix shared by the sync and async interpret paths.
func finishInterpretation(state *State, text string, err error) string {
	if err != nil {
		// Interpretation errors are non-fatal (spec.md §7): data still ships.
		text = "Analysis temporarily unavailable."
		state.Visualization = nil
	}
	if state.Intent == IntentMixed && state.GeneralAnswer != "" {
		text = fmt.Sprintf("## Answer\n%s\n\n---\n\n%s", state.GeneralAnswer, text)
	}
	return text
}
