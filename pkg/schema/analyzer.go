package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryhub/nl2sql/pkg/embedstore"
	"github.com/queryhub/nl2sql/pkg/llm"
)

// ErrSchemaEmbed indicates the embedding client failed after one retry.
var ErrSchemaEmbed = errors.New("embedding call failed")

// ErrSchemaEmptyStore indicates the embedding store has no entries for
// this namespace at all.
var ErrSchemaEmptyStore = errors.New("embedding store is empty for this schema")

// Context is the analyzer's output: the tables the generator should see
// and a bounded, LLM-ready rendering of them.
type Context struct {
	RelevantTables []string // S, score order — always a prefix of Expanded
	ExpandedTables []string // E, relevance-then-expansion order
	SchemaContext  string
	TokenEstimate  int
}

// AnalyzerLimits is the subset of config.Limits the analyzer consumes,
// kept separate so pkg/schema never imports pkg/config.
type AnalyzerLimits struct {
	MaxRelevantTables int
	MaxExpandedTables int
	MaxSchemaTokens   int
	SimilarityThresh  float64
}

// Analyzer implements the two-phase algorithm from spec.md §4.3.
type Analyzer struct {
	schema   *Schema
	embedder llm.EmbeddingClient
	store    *embedstore.Store
	limits   AnalyzerLimits
	logger   *slog.Logger
}

// NewAnalyzer binds an Analyzer to one schema's tables, an embedding
// client, and the persisted embedding store for that schema's namespace.
func NewAnalyzer(schema *Schema, embedder llm.EmbeddingClient, store *embedstore.Store, limits AnalyzerLimits) *Analyzer {
	return &Analyzer{schema: schema, embedder: embedder, store: store, limits: limits, logger: slog.Default()}
}

// Analyze runs phase 1 (semantic retrieval) then phase 2 (FK expansion)
// for query, and renders the resulting schema context string.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*Context, error) {
	vec, err := a.embedWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := a.store.TopK(ctx, vec, max(a.limits.MaxRelevantTables, 1))
	if err != nil {
		if errors.Is(err, embedstore.ErrEmpty) {
			return nil, ErrSchemaEmptyStore
		}
		return nil, fmt.Errorf("top-k lookup: %w", err)
	}

	relevant := a.filterByThreshold(scored)
	expanded, skipped := a.expand(relevant)
	schemaContext, tokenEstimate, renderSkipped := a.render(relevant, expanded, skipped)

	if total := len(skipped) + len(renderSkipped); total > 0 {
		a.logger.Info("schema analyzer omitted tables to stay within token budget",
			"query", query, "skipped", total, "relevant", len(relevant), "expanded", len(expanded))
	}

	return &Context{
		RelevantTables: relevant,
		ExpandedTables: expanded,
		SchemaContext:  schemaContext,
		TokenEstimate:  tokenEstimate,
	}, nil
}

func (a *Analyzer) embedWithRetry(ctx context.Context, query string) ([]float32, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err == nil {
		return vec, nil
	}
	vec, err = a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaEmbed, err)
	}
	return vec, nil
}

// filterByThreshold keeps scores ≥ SimilarityThresh, falling back to the
// single top match when none clear the bar (spec.md §4.3 phase 1, step 3).
func (a *Analyzer) filterByThreshold(scored []embedstore.Scored) []string {
	var out []string
	for _, s := range scored {
		if s.Score >= a.limits.SimilarityThresh {
			out = append(out, s.Table)
		}
	}
	if len(out) == 0 && len(scored) > 0 {
		out = []string{scored[0].Table}
	}
	return out
}

// expand runs the outbound-then-inbound FK expansion passes under the
// table-count and token-budget caps (spec.md §4.3 phase 2). skipped
// reports table names considered but dropped for logging.
func (a *Analyzer) expand(relevant []string) (expanded []string, skipped []string) {
	in := func(set []string, t string) bool {
		for _, x := range set {
			if x == t {
				return true
			}
		}
		return false
	}

	expanded = append([]string{}, relevant...)
	tokenBudget := a.limits.MaxSchemaTokens
	used := a.headerTokenEstimate(relevant)
	atCap := false

	// tryAdd reports whether the caller should keep iterating: false
	// means the table count cap was hit and both passes should stop.
	tryAdd := func(candidate string) bool {
		if atCap {
			return false
		}
		if in(expanded, candidate) {
			return true
		}
		if len(expanded) >= a.limits.MaxExpandedTables {
			atCap = true
			return false
		}
		cost := a.tableTokenEstimate(candidate, false)
		if used+cost > tokenBudget {
			skipped = append(skipped, candidate)
			return true // budget-skipped tables don't stop the pass, just this one table
		}
		expanded = append(expanded, candidate)
		used += cost
		return true
	}

	// Outbound pass: high priority.
outbound:
	for _, t := range relevant {
		for _, out := range a.schema.FKGraph.Outbound(t) {
			if !tryAdd(out) {
				break outbound
			}
		}
	}

	// Inbound pass: lower priority.
inbound:
	for _, t := range relevant {
		for _, in := range a.schema.FKGraph.Inbound(t) {
			if !tryAdd(in) {
				break inbound
			}
		}
	}

	return expanded, skipped
}

// render builds the schema-context string: a relevance header for the
// semantic set, then per-table blocks for the expanded set, with sample
// values included only for tables in relevant (spec.md §4.3, "selective
// samples"). Tables are stopped early if the running estimate would
// exceed MaxSchemaTokens; skippedDuringExpansion is merged with any
// further tables dropped at render time into an omission note, which is
// written only when it too fits within MaxSchemaTokens.
func (a *Analyzer) render(relevant, expanded, skippedDuringExpansion []string) (rendered string, tokenEstimate int, renderSkipped []string) {
	var b strings.Builder
	estimate := 0

	write := func(s string) {
		b.WriteString(s)
		estimate = estimateTokens(b.String())
	}

	write("-- relevance scores --\n")
	for _, t := range relevant {
		write(fmt.Sprintf("-- %s: semantically relevant\n", t))
	}
	write(fmt.Sprintf("-- sample values shown only for: %s --\n\n", strings.Join(relevant, ", ")))

	relevantSet := toSet(relevant)
	var skippedAtRender []string

	for _, t := range expanded {
		def, ok := a.schema.Table(t)
		if !ok {
			continue
		}
		block := a.renderTable(def, relevantSet[t])
		candidateEstimate := estimateTokens(b.String() + block)
		if candidateEstimate > a.limits.MaxSchemaTokens {
			skippedAtRender = append(skippedAtRender, t)
			continue
		}
		write(block)
	}

	allSkipped := append(append([]string{}, skippedDuringExpansion...), skippedAtRender...)
	if len(allSkipped) > 0 {
		note := fmt.Sprintf("\n-- %d table(s) omitted to stay within the schema token budget: %s --\n",
			len(allSkipped), strings.Join(allSkipped, ", "))
		if estimateTokens(b.String()+note) <= a.limits.MaxSchemaTokens {
			write(note)
		}
	}

	return b.String(), estimate, skippedAtRender
}

func (a *Analyzer) renderTable(def *TableDef, includeSamples bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TABLE %s: %s\n", def.Name, def.Description)
	for _, cname := range def.ColumnNames {
		col := def.ColumnByName[cname]
		fmt.Fprintf(&b, "  %s: %s — %s", col.Name, col.DataType, col.Description)
		if includeSamples && len(col.SampleValues) > 0 {
			n := len(col.SampleValues)
			if n > 3 {
				n = 3
			}
			fmt.Fprintf(&b, "; samples=%v", col.SampleValues[:n])
		}
		b.WriteString("\n")
	}
	for _, rel := range def.Relationships {
		fmt.Fprintf(&b, "  FK: %s -> %s.%s\n", rel.FromColumn, rel.ReferencedTable, rel.ReferencedColumn)
	}
	b.WriteString("\n")
	return b.String()
}

func (a *Analyzer) headerTokenEstimate(relevant []string) int {
	return estimateTokens(fmt.Sprintf("-- relevance scores --\n%s\n", strings.Join(relevant, ", ")))
}

func (a *Analyzer) tableTokenEstimate(table string, includeSamples bool) int {
	def, ok := a.schema.Table(table)
	if !ok {
		return 0
	}
	return estimateTokens(a.renderTable(def, includeSamples))
}

// estimateTokens is the contract from spec.md §9: len(text)/4, preserved
// verbatim rather than swapped for a real tokenizer.
func estimateTokens(text string) int {
	return len(text) / 4
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

