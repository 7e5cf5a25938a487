package pipeline

import (
	"github.com/queryhub/nl2sql/pkg/safety"
)

// ValidateSQL is the C7 node wrapper: purely mechanical, no LLM.
func ValidateSQL(deps *Deps, state *State) *State {
	result := safety.Validate(state.GeneratedSQL, deps.Adapter.Dialect())
	state.ValidationOK = result.OK
	state.ValidationError = result.Reason
	return state
}
