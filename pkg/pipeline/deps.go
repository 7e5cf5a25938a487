package pipeline

import (
	"log/slog"
	"time"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
	"github.com/queryhub/nl2sql/pkg/llm"
	"github.com/queryhub/nl2sql/pkg/schema"
	"github.com/queryhub/nl2sql/pkg/session"
	"github.com/queryhub/nl2sql/pkg/sqlcache"
)

// Deps is the process-wide dependency bundle every stage receives
// explicitly — no module-level globals (spec.md §9, "group in a single
// process-wide context created at startup; pass explicitly to stages").
type Deps struct {
	Schema   *schema.Schema
	Analyzer *schema.Analyzer
	Adapter  dbadapter.Adapter
	SQLCache *sqlcache.Cache
	Sessions *session.Manager
	LLM      llm.Client
	Embedder llm.EmbeddingClient
	Logger   *slog.Logger

	Limits Limits
}

// Limits is the subset of config.Limits the pipeline and API layer
// consume directly.
type Limits struct {
	MaxCacheRows      int
	PreviewRows       int
	CSVChunkSize      int
	SmartCountCap     int
	SessionHistoryUse int
	GeneratorRetries  int
	LLMTimeout        time.Duration
	DBPreviewTimeout  time.Duration
}
