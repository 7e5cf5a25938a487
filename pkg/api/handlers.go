package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/queryhub/nl2sql/pkg/pipeline"
	"github.com/queryhub/nl2sql/pkg/session"
)

type generateSQLRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// generateSQLHandler handles POST /api/generate-sql.
func (s *Server) generateSQLHandler(c *gin.Context) {
	var req generateSQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), ErrorCode: "BadRequest"})
		return
	}

	sess := s.deps.Sessions.GetOrCreate(req.SessionID)

	state, err := pipeline.Run(c.Request.Context(), s.deps, sess, pipeline.NewState(req.Query, sess.ID))
	if err != nil {
		status, resp := mapStageError(err)
		s.deps.Logger.Warn("generate-sql failed", "session_id", sess.ID, "stage", resp.Stage, "error_code", resp.ErrorCode)
		c.JSON(status, resp)
		return
	}

	sess.AppendExchange(session.Exchange{
		UserMessage:  req.Query,
		GeneratedSQL: state.GeneratedSQL,
		Timestamp:    time.Now(),
	})

	overview := s.deps.Schema.Overview()
	resp := GenerateSQLResponse{
		Intent:         string(state.Intent),
		GeneralAnswer:  state.GeneralAnswer,
		SchemaOverview: &overview,
	}
	if state.Intent != pipeline.IntentGeneral {
		resp.QueryID = state.QueryID
		sql := state.GeneratedSQL
		resp.SQL = &sql
	}
	c.JSON(http.StatusOK, resp)
}

// executeHandler handles GET /api/execute/:query_id.
func (s *Server) executeHandler(c *gin.Context) {
	queryID := c.Param("query_id")
	_, entry, ok := s.deps.Sessions.FindQuery(queryID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "query_id not found or expired", ErrorCode: "NotFound"})
		return
	}

	rows := entry.Rows
	if limit := s.deps.Limits.PreviewRows; limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	total, truncated := totalAndTruncated(entry.TotalCount, len(rows))
	c.JSON(http.StatusOK, ExecuteResponse{
		Data:       rows,
		Columns:    entry.Columns,
		TotalCount: total,
		Truncated:  truncated,
	})
}

// interpretHandler handles POST /api/interpret/:query_id. It only reads
// the cached rows from a prior execute — it never re-runs SQL.
func (s *Server) interpretHandler(c *gin.Context) {
	queryID := c.Param("query_id")
	_, entry, ok := s.deps.Sessions.FindQuery(queryID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "query_id not found or expired", ErrorCode: "NotFound"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.deps.Limits.LLMTimeout)
	defer cancel()

	viz, interpretation := interpretRows(ctx, s.deps, entry)
	_, truncated := totalAndTruncated(entry.TotalCount, len(entry.Rows))
	c.JSON(http.StatusOK, InterpretResponse{
		Interpretation: interpretation,
		Visualization:  viz,
		DataTruncated:  truncated,
	})
}

// downloadHandler handles GET /api/download/:query_id: a CSV stream of
// the full dataset, re-executed without a LIMIT (spec.md §6.3).
func (s *Server) downloadHandler(c *gin.Context) {
	queryID := c.Param("query_id")
	_, entry, ok := s.deps.Sessions.FindQuery(queryID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "query_id not found or expired", ErrorCode: "NotFound"})
		return
	}

	iter, err := s.deps.Adapter.ExecuteStream(c.Request.Context(), entry.SQL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), ErrorCode: "DBConn"})
		return
	}
	defer iter.Close()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="export.csv"`)
	streamCSV(c.Writer, iter, s.deps.Limits.CSVChunkSize)
}

// schemaOverviewHandler handles GET /api/schema/overview.
func (s *Server) schemaOverviewHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Schema.Overview())
}

type feedbackRequest struct {
	QueryID string `json:"query_id" binding:"required"`
	Verdict string `json:"verdict" binding:"required"`
}

// feedbackHandler handles POST /api/feedback. On a "down" verdict it
// invalidates the SQL cache entry for the originating normalized query
// (spec.md §3.4/§6.3) — it does not touch the embedding store or session.
func (s *Server) feedbackHandler(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), ErrorCode: "BadRequest"})
		return
	}
	if req.Verdict != "up" && req.Verdict != "down" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "verdict must be up or down", ErrorCode: "BadRequest"})
		return
	}

	if req.Verdict == "down" {
		_, entry, ok := s.deps.Sessions.FindQuery(req.QueryID)
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "query_id not found or expired", ErrorCode: "NotFound"})
			return
		}
		if err := s.deps.SQLCache.Invalidate(c.Request.Context(), entry.NormalizedQuery); err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), ErrorCode: "CacheIO"})
			return
		}
		s.deps.Logger.Info("feedback invalidated cache entry", "query_id", req.QueryID)
	}
	c.Status(http.StatusNoContent)
}

// totalAndTruncated derives ExecuteResponse's total_count/truncated pair
// (property P6: truncated = |data| < total_count) given the row count
// actually returned to the caller, which may be capped below the full
// cached set by PREVIEW_ROWS.
func totalAndTruncated(totalCount *int, dataLen int) (total any, truncated bool) {
	if totalCount == nil {
		return "unknown", dataLen > 0
	}
	return *totalCount, dataLen < *totalCount
}
