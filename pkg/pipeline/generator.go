package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/llm"
	"github.com/queryhub/nl2sql/pkg/sqlcache"
)

// GenerateSQL is the C11 node: a single LLM call producing a
// dialect-specific SELECT, given the rewritten query and schema context.
// The regeneration loop itself lives in the graph (§4.10), not here —
// this function is a pure one-shot call; the cache upsert on success is
// done separately by CacheGeneratedSQL.
// lastError, when non-empty, is threaded back in as repair context after
// a failed validation or execution attempt.
func GenerateSQL(ctx context.Context, deps *Deps, state *State, dialect dbadapter.Dialect, lastError string) (*State, error) {
	prompt := buildGeneratorPrompt(state.RewrittenQuery, state.SchemaContext, dialect, state.GeneratedSQL, lastError)

	raw, err := deps.LLM.Complete(ctx, llm.CompleteRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: generatorSystemPrompt(dialect)},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, newStageError("generator", KindSQLGen, "llm call failed", err)
	}

	state.GeneratedSQL = extractSQL(raw)
	return state, nil
}

// CacheGeneratedSQL upserts the successful generation into the SQL
// cache, called by the graph only after validation and execution
// both succeed (spec.md §4.6: "on success, upsert into SQL cache").
func CacheGeneratedSQL(ctx context.Context, deps *Deps, state *State) error {
	normalized := sqlcache.Normalize(state.RewrittenQuery)
	if err := deps.SQLCache.Put(ctx, normalized, state.GeneratedSQL); err != nil {
		return newStageError("generator", KindCacheIO, "cache upsert failed", err)
	}
	return nil
}

func generatorSystemPrompt(dialect dbadapter.Dialect) string {
	dateArith := "date('now','-30 day')"
	if dialect == dbadapter.DialectPostgres {
		dateArith = "CURRENT_DATE - INTERVAL '30 days'"
	}
	return fmt.Sprintf(`You write a single read-only SQL SELECT statement for %s. Rules:
- SELECT only, never write/DDL statements.
- Prefer explicit JOINs over implicit comma joins.
- Include LIMIT unless the query implies an aggregation over a small result set.
- Use dialect-specific date arithmetic, e.g. %s.
- Never reference sqlite_master, pg_catalog, or information_schema.
Respond with ONLY the SQL statement, no commentary, no markdown fences.`, dialect, dateArith)
}

func buildGeneratorPrompt(query, schemaContext string, dialect dbadapter.Dialect, lastSQL, lastError string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema:\n%s\n", schemaContext)
	fmt.Fprintf(&b, "Question: %s\n", query)
	if lastError != "" {
		fmt.Fprintf(&b, "\nThe previous attempt failed:\nSQL: %s\nError: %s\nFix it.\n", lastSQL, lastError)
	}
	return b.String()
}

// extractSQL strips markdown fences the model may add despite being
// told not to, mirroring the tolerance pkg/llm.ExtractJSON applies to
// JSON responses.
func extractSQL(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
