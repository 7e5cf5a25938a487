package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/queryhub/nl2sql/pkg/pipeline"
	"github.com/queryhub/nl2sql/pkg/session"
)

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type chatEvent struct {
	name string
	data any
}

// chatHandler handles POST /chat: runs the pipeline and streams its
// stages as SSE events in the order spec.md §6.4 specifies, with a
// keep-alive comment every 15s so intermediaries don't close the
// connection during a slow generation.
func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), ErrorCode: "BadRequest"})
		return
	}

	sess := s.deps.Sessions.GetOrCreate(req.SessionID)

	events := make(chan chatEvent, 8)
	go s.runChat(c.Request.Context(), sess, req.Message, events)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	flusher, _ := c.Writer.(http.Flusher)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c.Writer, ev.name, ev.data)
			if flusher != nil {
				flusher.Flush()
			}
		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			if flusher != nil {
				flusher.Flush()
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// runChat drives the pipeline and emits ordered events onto ch, closing
// it when the response is fully sent. It owns the session-history write
// so a cancelled request never appends a half-finished exchange (spec.md
// §5's "session updates happen only in the HTTP layer after the pipeline
// returns").
func (s *Server) runChat(ctx context.Context, sess *session.Session, message string, ch chan<- chatEvent) {
	defer close(ch)

	ch <- chatEvent{"session", gin.H{"session_id": sess.ID}}

	state, err := pipeline.RunCore(ctx, s.deps, sess, pipeline.NewState(message, sess.ID))
	if err != nil {
		status, resp := mapStageError(err)
		s.deps.Logger.Warn("chat request failed", "session_id", sess.ID, "stage", resp.Stage, "error_code", resp.ErrorCode)
		ch <- chatEvent{"error", gin.H{"error": resp.Error, "error_code": resp.ErrorCode, "stage": resp.Stage, "status": status}}
		ch <- chatEvent{"done", gin.H{}}
		return
	}

	sess.AppendExchange(session.Exchange{
		UserMessage:  message,
		GeneratedSQL: state.GeneratedSQL,
		Timestamp:    time.Now(),
	})

	// Start the insight call before emitting sql/data so it overlaps
	// with the transport write instead of adding to total latency.
	interpreted := pipeline.InterpretAsync(ctx, s.deps, state)

	if state.Intent != pipeline.IntentGeneral {
		ch <- chatEvent{"sql", gin.H{"sql": state.GeneratedSQL}}

		total, truncated := totalAndTruncatedFromState(state)
		ch <- chatEvent{"data", gin.H{
			"columns":     state.Columns,
			"data":        state.Rows,
			"total_count": total,
			"truncated":   truncated,
		}}
	}

	state = <-interpreted
	ch <- chatEvent{"analysis", gin.H{
		"interpretation": state.Interpretation,
		"visualization":  state.Visualization,
	}}
	ch <- chatEvent{"done", gin.H{}}
}

func totalAndTruncatedFromState(state *pipeline.State) (any, bool) {
	if state.TotalCountHint == nil {
		return "unknown", len(state.Rows) > 0
	}
	return *state.TotalCountHint, len(state.Rows) < *state.TotalCountHint
}

// writeSSE writes one SSE event frame: "event: name\ndata: <json>\n\n".
// Gin's c.SSEvent marshals similarly but buffers through its own JSON
// renderer; this is used directly so the keep-alive ticker and event
// channel can share the same ResponseWriter without fighting gin's
// per-call content-type reset.
func writeSSE(w http.ResponseWriter, name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}
