package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryhub/nl2sql/pkg/llm"
	"github.com/queryhub/nl2sql/pkg/session"
)

type intentResponse struct {
	Intent         string `json:"intent"`
	RewrittenQuery string `json:"rewritten_query"`
	GeneralAnswer  string `json:"general_answer"`
}

// ClassifyAndRewrite is the C9 node: a single LLM call that classifies
// intent and, for sql/mixed, rewrites follow-ups into standalone form
// using the session's recent history (spec.md §4.4).
func ClassifyAndRewrite(ctx context.Context, deps *Deps, state *State, history []session.Exchange) (*State, error) {
	prompt := buildIntentPrompt(state.OriginalQuery, history, deps.Schema.TableNames, deps.Schema.SuggestedQueries)

	raw, err := deps.LLM.Complete(ctx, llm.CompleteRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: intentSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, newStageError("intent", KindIntentParse, "llm call failed", err)
	}

	resp, err := parseIntentResponse(raw)
	if err != nil {
		// Retry once with a stricter prompt (spec.md §4.4).
		raw, err = deps.LLM.Complete(ctx, llm.CompleteRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: intentSystemPrompt + "\nRespond with ONLY the JSON object, nothing else."},
				{Role: llm.RoleUser, Content: prompt},
			},
			Temperature: 0,
			MaxTokens:   300,
		})
		if err == nil {
			resp, err = parseIntentResponse(raw)
		}
		if err != nil {
			// Default to treating the raw query as sql without rewriting.
			state.Intent = IntentSQL
			state.RewrittenQuery = state.OriginalQuery
			return state, nil
		}
	}

	state.Intent = Intent(resp.Intent)
	state.GeneralAnswer = resp.GeneralAnswer
	if state.Intent == IntentSQL || state.Intent == IntentMixed {
		state.RewrittenQuery = resp.RewrittenQuery
		if state.RewrittenQuery == "" {
			state.RewrittenQuery = state.OriginalQuery
		}
	}
	return state, nil
}

func parseIntentResponse(raw string) (*intentResponse, error) {
	jsonText, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var resp intentResponse
	if err := json.Unmarshal([]byte(jsonText), &resp); err != nil {
		return nil, err
	}
	switch resp.Intent {
	case string(IntentSQL), string(IntentGeneral), string(IntentMixed):
	default:
		return nil, fmt.Errorf("unrecognized intent %q", resp.Intent)
	}
	return &resp, nil
}

const intentSystemPrompt = `You classify a user's question about a database as "sql", "general", or "mixed", and for sql/mixed you rewrite follow-up questions into a standalone form using the conversation history. Respond with a JSON object: {"intent": "...", "rewritten_query": "...", "general_answer": "..."}. Do not alter phrasing that is already standalone.`

func buildIntentPrompt(query string, history []session.Exchange, tableNames, suggested []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Available tables: %s\n", strings.Join(tableNames, ", "))
	fmt.Fprintf(&b, "Suggested queries: %s\n", strings.Join(suggested, "; "))
	if len(history) > 0 {
		b.WriteString("Recent exchanges:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "- user: %s -> sql: %s\n", ex.UserMessage, ex.GeneratedSQL)
		}
	}
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}
