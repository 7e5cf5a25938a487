package api

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
)

// readSSEEvents parses a recorded SSE body into an ordered list of event
// names, one entry per "event: " line, including repeated names.
func readSSEEvents(t *testing.T, body []byte) []string {
	t.Helper()
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestChatHandler_SQLIntentEmitsFullEventSequence(t *testing.T) {
	adapter := &fakeAdapter{count: 1, rows: &dbadapter.ResultSet{Columns: []string{"id"}, Rows: [][]any{{1}}}}
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "Show all load balancers"}`,
		"SELECT * FROM load_balancers LIMIT 50",
		"One row found.",
	}}
	server, sessions := newTestServer(t, llmClient, adapter)

	rec := doJSON(t, server.engine, http.MethodPost, "/chat", chatRequest{Message: "Show all load balancers"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := readSSEEvents(t, rec.Body.Bytes())
	require.Equal(t, []string{"session", "sql", "data", "analysis", "done"}, events)
	assert.Equal(t, 1, sessions.Count())
}

func TestChatHandler_GeneralIntentSkipsSQLAndData(t *testing.T) {
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "general", "general_answer": "DNS translates names to IP addresses."}`,
	}}
	server, _ := newTestServer(t, llmClient, &fakeAdapter{})

	rec := doJSON(t, server.engine, http.MethodPost, "/chat", chatRequest{Message: "What is DNS?"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := readSSEEvents(t, rec.Body.Bytes())
	assert.Equal(t, []string{"session", "analysis", "done"}, events)
	assert.Contains(t, rec.Body.String(), "DNS translates names to IP addresses.")
}

func TestChatHandler_PipelineErrorEmitsErrorThenDone(t *testing.T) {
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "sql", "rewritten_query": "delete everything"}`,
		"DELETE FROM load_balancers",
		"DELETE FROM load_balancers",
		"DELETE FROM load_balancers",
		"DELETE FROM load_balancers",
	}}
	server, _ := newTestServer(t, llmClient, &fakeAdapter{})

	rec := doJSON(t, server.engine, http.MethodPost, "/chat", chatRequest{Message: "delete everything"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := readSSEEvents(t, rec.Body.Bytes())
	assert.Equal(t, []string{"session", "error", "done"}, events)
}

func TestWriteSSE_FormatsEventFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSSE(rec, "done", map[string]string{})
	assert.Equal(t, "event: done\ndata: {}\n\n", rec.Body.String())
}

func TestChatHandler_RespondsWithinReasonableTime(t *testing.T) {
	llmClient := &fakeLLM{responses: []string{
		`{"intent": "general", "general_answer": "ok"}`,
	}}
	server, _ := newTestServer(t, llmClient, &fakeAdapter{})

	start := time.Now()
	rec := doJSON(t, server.engine, http.MethodPost, "/chat", chatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
}
