package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_ReturnsFirstChoiceContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message wireMessage `json:"message"`
			}{{Message: wireMessage{Role: RoleAssistant, Content: "hello"}}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, 2)
	out, err := c.Complete(t.Context(), CompleteRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestComplete_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message wireMessage `json:"message"`
			}{{Message: wireMessage{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, 3)
	out, err := c.Complete(t.Context(), CompleteRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, attempts)
}

func TestComplete_4xxIsNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, 3)
	_, err := c.Complete(t.Context(), CompleteRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestEmbed_ReturnsFirstEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
			}{{Embedding: []float32{0.1, 0.2}}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, 1)
	vec, err := c.Embed(t.Context(), "customers table")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}
