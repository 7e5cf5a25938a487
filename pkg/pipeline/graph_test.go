package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/embedstore"
	"github.com/queryhub/nl2sql/pkg/llm"
	"github.com/queryhub/nl2sql/pkg/schema"
	"github.com/queryhub/nl2sql/pkg/session"
	"github.com/queryhub/nl2sql/pkg/sqlcache"
	"github.com/queryhub/nl2sql/pkg/store"
)

const graphTestSchema = `{
	"schema_id": "acme",
	"suggested_queries": ["show load balancers"],
	"tables": {
		"load_balancers": {
			"description": "load balancers",
			"columns": {
				"id": {"data_type": "integer", "is_primary_key": true},
				"datacenter": {"data_type": "text", "sample_values": ["us-east", "us-west"]}
			}
		}
	}
}`

// fakeAdapter is a scripted dbadapter.Adapter: each call consumes the
// next entry in a queue, letting tests force a sequence of failures
// followed by success to exercise the retry loop.
type fakeAdapter struct {
	dialect   dbadapter.Dialect
	countErrs []error
	execErrs  []error
	rows      *dbadapter.ResultSet
	count     int
	countCall int
	execCall  int
}

func (a *fakeAdapter) Dialect() dbadapter.Dialect { return a.dialect }
func (a *fakeAdapter) Introspect(ctx context.Context) (*dbadapter.Catalog, error) {
	return &dbadapter.Catalog{}, nil
}
func (a *fakeAdapter) Count(ctx context.Context, sql string, cap int) (dbadapter.CountResult, error) {
	var err error
	if a.countCall < len(a.countErrs) {
		err = a.countErrs[a.countCall]
	}
	a.countCall++
	if err != nil {
		return dbadapter.CountResult{}, err
	}
	return dbadapter.CountResult{Exact: a.count}, nil
}
func (a *fakeAdapter) ExecutePreview(ctx context.Context, sql string, limit int) (*dbadapter.ResultSet, error) {
	var err error
	if a.execCall < len(a.execErrs) {
		err = a.execErrs[a.execCall]
	}
	a.execCall++
	if err != nil {
		return nil, err
	}
	return a.rows, nil
}
func (a *fakeAdapter) ExecuteStream(ctx context.Context, sql string) (dbadapter.RowIterator, error) {
	return nil, nil
}
func (a *fakeAdapter) Close() error { return nil }

// fakeLLM scripts intent classification and SQL generation responses in
// call order, so a single test can drive the full graph deterministically.
type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompleteRequest) (string, error) {
	if f.calls >= len(f.responses) {
		panic("fakeLLM: ran out of scripted responses")
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newGraphDeps(t *testing.T, llmClient llm.Client, adapter dbadapter.Adapter) (*Deps, *session.Manager) {
	t.Helper()
	s, err := schema.LoadBytes([]byte(graphTestSchema))
	require.NoError(t, err)

	st, err := store.Open(store.BackendSQLite, t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	es := embedstore.New(st, "acme")
	require.NoError(t, es.Put(context.Background(), "load_balancers", []float32{1, 0}))

	analyzer := schema.NewAnalyzer(s, fakeEmbedder{}, es, schema.AnalyzerLimits{
		MaxRelevantTables: 5, MaxExpandedTables: 15, MaxSchemaTokens: 8000, SimilarityThresh: 0.1,
	})

	cache := sqlcache.New(st, "acme")
	sessions := session.NewManager(30*time.Minute, 5)

	deps := &Deps{
		Schema:   s,
		Analyzer: analyzer,
		Adapter:  adapter,
		SQLCache: cache,
		Sessions: sessions,
		LLM:      llmClient,
		Embedder: fakeEmbedder{},
		Logger:   slog.Default(),
		Limits: Limits{
			MaxCacheRows:      50,
			SmartCountCap:     1000,
			SessionHistoryUse: 3,
			GeneratorRetries:  3,
			LLMTimeout:        5 * time.Second,
			DBPreviewTimeout:  5 * time.Second,
		},
	}
	return deps, sessions
}

func TestRun_BasicListingCacheMissThenHit(t *testing.T) {
	adapter := &fakeAdapter{
		dialect: dbadapter.DialectSQLite,
		count:   50,
		rows:    &dbadapter.ResultSet{Columns: []string{"id"}, Rows: [][]any{{1}}},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show me all load balancers"}`,
		"SELECT * FROM load_balancers LIMIT 50",
		"Found 1 item(s).", // unused since result is trivial; summarize may not be called
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := Run(context.Background(), deps, sess, NewState("Show me all load balancers", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, CacheHitNone, state.CacheHitType)
	assert.Equal(t, "SELECT * FROM load_balancers LIMIT 50", state.GeneratedSQL)
	require.NotNil(t, state.TotalCountHint)
	assert.Equal(t, 50, *state.TotalCountHint)

	sess.AppendExchange(session.Exchange{UserMessage: state.OriginalQuery, GeneratedSQL: state.GeneratedSQL})

	llmClient2 := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show me all load balancers"}`,
	}}
	deps.LLM = llmClient2
	state2, err := Run(context.Background(), deps, sess, NewState("Show me all load balancers", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, CacheHitSQL, state2.CacheHitType)
	assert.Equal(t, state.GeneratedSQL, state2.GeneratedSQL)
}

func TestRun_GeneralKnowledgeShortCircuit(t *testing.T) {
	adapter := &fakeAdapter{dialect: dbadapter.DialectSQLite}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "general", "general_answer": "DNS translates names to IP addresses."}`,
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := Run(context.Background(), deps, sess, NewState("What is DNS?", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, IntentGeneral, state.Intent)
	assert.Empty(t, state.GeneratedSQL)
	assert.Equal(t, "DNS translates names to IP addresses.", state.Interpretation)
	assert.Equal(t, 0, adapter.execCall)
}

func TestRun_MixedIntentPrependsAnswer(t *testing.T) {
	adapter := &fakeAdapter{
		dialect: dbadapter.DialectSQLite,
		count:   2,
		rows:    &dbadapter.ResultSet{Columns: []string{"name"}, Rows: [][]any{{"a"}, {"b"}}},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "mixed", "rewritten_query": "Show all DNS records", "general_answer": "DNS translates names to IP addresses."}`,
		"SELECT * FROM load_balancers LIMIT 50",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := Run(context.Background(), deps, sess, NewState("What is DNS? Show all DNS records", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, IntentMixed, state.Intent)
	assert.Contains(t, state.Interpretation, "## Answer\nDNS translates names to IP addresses.\n\n---\n\n")
}

func TestRun_SafetyRejectionExhaustsRetriesAndFails(t *testing.T) {
	adapter := &fakeAdapter{dialect: dbadapter.DialectSQLite}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "delete all servers"}`,
		"DELETE FROM servers",
		"DELETE FROM servers",
		"DELETE FROM servers",
		"DELETE FROM servers",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	_, err := Run(context.Background(), deps, sess, NewState("delete all servers", sess.ID))
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindSQLGen, stageErr.Kind)
	assert.Contains(t, stageErr.Cause.Error(), "DELETE")
}

func TestRun_ExecutorFailureRetriesThenSucceeds(t *testing.T) {
	adapter := &fakeAdapter{
		dialect:   dbadapter.DialectSQLite,
		count:     1,
		countErrs: []error{&dbadapter.OpError{Sentinel: dbadapter.ErrDBSyntax, Cause: dbadapter.ErrDBSyntax}, nil},
		rows:      &dbadapter.ResultSet{Columns: []string{"id"}, Rows: [][]any{{1}}},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show all load balancers"}`,
		"SELECT * FROM load_balancers LIMIT 50",
		"SELECT * FROM load_balancers WHERE id > 0 LIMIT 50",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := Run(context.Background(), deps, sess, NewState("Show all load balancers", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, state.Retries)
	assert.Equal(t, "SELECT * FROM load_balancers WHERE id > 0 LIMIT 50", state.GeneratedSQL)
}

func TestRun_CancelledContextStopsBeforeFurtherWork(t *testing.T) {
	adapter := &fakeAdapter{dialect: dbadapter.DialectSQLite}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show all load balancers"}`,
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, deps, sess, NewState("Show all load balancers", sess.ID))
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindCancelled, stageErr.Kind)
	assert.Equal(t, 1, sessions.Count()) // session itself untouched beyond creation
}

func TestRun_AggregationQueryPicksBarChart(t *testing.T) {
	adapter := &fakeAdapter{
		dialect: dbadapter.DialectSQLite,
		count:   2,
		rows: &dbadapter.ResultSet{
			Columns: []string{"datacenter", "count"},
			Rows:    [][]any{{"us-east", 5}, {"us-west", 3}},
		},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Count load balancers per datacenter"}`,
		"SELECT datacenter, COUNT(*) AS count FROM load_balancers GROUP BY datacenter",
		"- us-east leads with 5",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := Run(context.Background(), deps, sess, NewState("Count load balancers per datacenter", sess.ID))
	require.NoError(t, err)
	require.NotNil(t, state.Visualization)
	assert.Equal(t, "bar", string(state.Visualization.Type))
	assert.Equal(t, "datacenter", state.Visualization.XColumn)
	assert.Equal(t, "count", state.Visualization.YColumn)
}

func TestRunCore_StopsBeforeInterpretation(t *testing.T) {
	adapter := &fakeAdapter{
		dialect: dbadapter.DialectSQLite,
		count:   1,
		rows:    &dbadapter.ResultSet{Columns: []string{"id"}, Rows: [][]any{{1}}},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show all load balancers"}`,
		"SELECT * FROM load_balancers LIMIT 50",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := RunCore(context.Background(), deps, sess, NewState("Show all load balancers", sess.ID))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM load_balancers LIMIT 50", state.GeneratedSQL)
	assert.Empty(t, state.Interpretation)
	assert.Nil(t, state.Visualization)
	assert.Equal(t, 2, llmClient.calls) // classify + generate only, no summarize call yet
}

func TestInterpretAsync_DeliversFinishedStateOnChannel(t *testing.T) {
	adapter := &fakeAdapter{
		dialect: dbadapter.DialectSQLite,
		count:   2,
		rows: &dbadapter.ResultSet{
			Columns: []string{"datacenter", "count"},
			Rows:    [][]any{{"us-east", 5}, {"us-west", 3}},
		},
	}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Count load balancers per datacenter"}`,
		"SELECT datacenter, COUNT(*) AS count FROM load_balancers GROUP BY datacenter",
		"- us-east leads with 5",
	}}
	deps, sessions := newGraphDeps(t, llmClient, adapter)
	sess := sessions.Create()

	state, err := RunCore(context.Background(), deps, sess, NewState("Count load balancers per datacenter", sess.ID))
	require.NoError(t, err)
	require.Empty(t, state.Interpretation)

	finished := <-InterpretAsync(context.Background(), deps, state)
	assert.Equal(t, "- us-east leads with 5", finished.Interpretation)
	require.NotNil(t, finished.Visualization)
	assert.Equal(t, "bar", string(finished.Visualization.Type))
}
