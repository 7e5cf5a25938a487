// Package bootstrap assembles every long-lived singleton the pipeline
// depends on (schema, DB adapter, caches, session manager, LLM clients)
// and runs the startup checks spec.md §4.12 requires before the server
// accepts traffic.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/queryhub/nl2sql/pkg/config"
	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/embedstore"
	"github.com/queryhub/nl2sql/pkg/llm"
	"github.com/queryhub/nl2sql/pkg/pipeline"
	"github.com/queryhub/nl2sql/pkg/schema"
	"github.com/queryhub/nl2sql/pkg/session"
	"github.com/queryhub/nl2sql/pkg/sqlcache"
	"github.com/queryhub/nl2sql/pkg/store"
)

// DriftError reports every canonical table/column absent from the live
// database. The check is one-way: the live database may carry extra
// tables or columns the canonical schema never mentions.
type DriftError struct {
	Missing []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("schema drift detected, %d missing entities:\n  %s", len(e.Missing), strings.Join(e.Missing, "\n  "))
}

// checkDrift verifies every canonical table and column exists in cat.
func checkDrift(sch *schema.Schema, cat *dbadapter.Catalog) error {
	var missing []string
	for _, tableName := range sch.TableNames {
		table := sch.TableByName[tableName]
		if !cat.HasTable(tableName) {
			missing = append(missing, fmt.Sprintf("table %q", tableName))
			continue
		}
		for _, colName := range table.ColumnNames {
			if !cat.HasColumn(tableName, colName) {
				missing = append(missing, fmt.Sprintf("column %q.%q", tableName, colName))
			}
		}
	}
	if len(missing) > 0 {
		return &DriftError{Missing: missing}
	}
	return nil
}

// App bundles the running process's singletons alongside the pipeline
// dependency bundle, so main can hold one value for shutdown.
type App struct {
	Deps  *pipeline.Deps
	Store *store.Store
}

// Run executes the bootstrap sequence from spec.md §4.12, steps 1-5:
// load schema, open the adapter and introspect it, check drift, build
// the internal stores, and issue the non-fatal warmup calls. Step 6
// (route registration and serving) is the caller's responsibility.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	sch, err := schema.Load(cfg.CanonicalSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load canonical schema: %w", err)
	}
	if sch.SchemaID != cfg.SchemaID {
		return nil, fmt.Errorf("canonical schema id %q does not match configured SCHEMA_ID %q", sch.SchemaID, cfg.SchemaID)
	}
	logger.Info("loaded canonical schema", "schema_id", sch.SchemaID, "tables", len(sch.TableNames))

	adapter, err := openAdapter(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database adapter: %w", err)
	}

	catalog, err := adapter.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect live database: %w", err)
	}
	if err := checkDrift(sch, catalog); err != nil {
		return nil, err
	}
	logger.Info("schema drift check passed")

	internalStore, err := store.Open(store.Backend(cfg.Store.Backend), storeDSN(cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("open internal store: %w", err)
	}

	embedStore := embedstore.New(internalStore, sch.SchemaID)
	sqlCache := sqlcache.New(internalStore, sch.SchemaID)
	sessions := session.NewManager(time.Duration(cfg.Limits.CacheTTLSeconds)*time.Second, cfg.Limits.SessionHistoryKeep)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.Limits.LLMTimeout, 3)
	embedClient := llm.NewHTTPClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.Limits.LLMTimeout, 3)

	analyzer := schema.NewAnalyzer(sch, embedClient, embedStore, schema.AnalyzerLimits{
		MaxRelevantTables: cfg.Limits.MaxRelevantTables,
		MaxExpandedTables: cfg.Limits.MaxExpandedTables,
		MaxSchemaTokens:   cfg.Limits.MaxSchemaTokens,
		SimilarityThresh:  cfg.Limits.SimilarityThresh,
	})

	warmup(ctx, logger, llmClient, embedClient)

	deps := &pipeline.Deps{
		Schema:   sch,
		Analyzer: analyzer,
		Adapter:  adapter,
		SQLCache: sqlCache,
		Sessions: sessions,
		LLM:      llmClient,
		Embedder: embedClient,
		Logger:   logger,
		Limits: pipeline.Limits{
			MaxCacheRows:      cfg.Limits.MaxCacheRows,
			PreviewRows:       cfg.Limits.PreviewRows,
			CSVChunkSize:      cfg.Limits.CSVChunkSize,
			SmartCountCap:     cfg.Limits.SmartCountCap,
			SessionHistoryUse: cfg.Limits.SessionHistoryUse,
			GeneratorRetries:  cfg.Limits.GeneratorRetries,
			LLMTimeout:        cfg.Limits.LLMTimeout,
			DBPreviewTimeout:  cfg.Limits.DBPreviewTimeout,
		},
	}

	return &App{Deps: deps, Store: internalStore}, nil
}

func openAdapter(ctx context.Context, dbCfg config.DatabaseConfig) (dbadapter.Adapter, error) {
	pool := dbadapter.PoolConfig{
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	}
	switch dbCfg.Type {
	case config.DatabasePostgres:
		return dbadapter.OpenPostgres(ctx, dbCfg.DSN, pool)
	default:
		return dbadapter.OpenSQLite(dbCfg.DSN, pool)
	}
}

func storeDSN(sc config.StoreConfig) string {
	if sc.Backend == config.DatabasePostgres {
		return sc.DSN
	}
	return sc.Path
}

// warmup issues one 1-token completion and one short embedding call so
// the first real request doesn't pay a cold-connection penalty. Failure
// here is logged, never fatal (spec.md §4.12 step 5).
func warmup(ctx context.Context, logger *slog.Logger, llmClient llm.Client, embedClient llm.EmbeddingClient) {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := llmClient.Complete(wctx, llm.CompleteRequest{
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1,
	}); err != nil {
		logger.Warn("llm warmup failed", "error", err)
	} else {
		logger.Info("llm warmup ok", "duration", time.Since(start))
	}

	start = time.Now()
	if _, err := embedClient.Embed(wctx, "warmup"); err != nil {
		logger.Warn("embedding warmup failed", "error", err)
	} else {
		logger.Info("embedding warmup ok", "duration", time.Since(start))
	}
}
