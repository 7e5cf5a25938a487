// Package pipeline implements the NL→SQL conversational pipeline: the
// directed graph of stages described in spec.md §4.10, threading a
// single State record through intent classification, cache lookup,
// schema analysis, SQL generation, safety validation, execution, and
// interpretation.
package pipeline

import (
	"github.com/queryhub/nl2sql/pkg/interpret"
)

// Intent is the classifier's output category.
type Intent string

const (
	IntentSQL     Intent = "sql"
	IntentGeneral Intent = "general"
	IntentMixed   Intent = "mixed"
)

// CacheHitType records how generated_sql was populated.
type CacheHitType string

const (
	CacheHitNone CacheHitType = "none"
	CacheHitSQL  CacheHitType = "sql"
)

// State is the single record passed through every stage (spec.md §3.6).
// Each stage mutates only the fields it owns; nothing here is shared
// across goroutines without passing through a stage boundary first.
type State struct {
	OriginalQuery        string
	SessionID            string
	ConversationContext  string // rendered history; no stage sets it (history goes to intent directly)

	Intent         Intent
	GeneralAnswer  string
	RewrittenQuery string

	CacheHitType CacheHitType
	GeneratedSQL string

	RelevantTables []string
	SchemaContext  string
	TokenEstimate  int

	ValidationOK    bool
	ValidationError string

	Columns         []string
	Rows            [][]any
	TotalCountHint  *int // nil means "unknown"
	ExecutionError  string

	Interpretation string
	Visualization  *interpret.VizSpec

	ErrorStage   string
	ErrorMessage string

	QueryID string

	// Retries counts regenerations across both validator and executor
	// failures; the graph enforces the global budget of 3 (spec.md §4.10).
	Retries int
}

// NewState seeds a State for a fresh request.
func NewState(query, sessionID string) *State {
	return &State{OriginalQuery: query, SessionID: sessionID}
}

// Failed reports whether the pipeline has recorded a terminal error.
func (s *State) Failed() bool {
	return s.ErrorStage != ""
}

// Fail records a terminal error for stage, short-circuiting the graph.
func (s *State) Fail(stage, message string) {
	s.ErrorStage = stage
	s.ErrorMessage = message
}
