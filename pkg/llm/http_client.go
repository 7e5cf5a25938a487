package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient implements Client over a plain JSON HTTP endpoint, with
// exponential-backoff retries for transient failures. The wire protocol
// is intentionally generic (OpenAI-compatible chat-completions shape)
// since the concrete LLM provider is an external collaborator (spec.md §1).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

// NewHTTPClient builds an HTTPClient. timeout bounds each individual
// HTTP attempt; every retry gets the full timeout again.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, maxRetries uint64) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	wire := chatCompletionRequest{
		Messages:    toWireMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	var result chatCompletionResponse
	op := func() error {
		return c.doJSON(ctx, "/v1/chat/completions", body, &result)
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm completion: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements EmbeddingClient.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var result embeddingResponse
	op := func() error {
		return c.doJSON(ctx, "/v1/embeddings", body, &result)
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("embedding call: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding call: empty data")
	}
	return result.Data[0].Embedding, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("llm http call failed, retrying", "path", path, "error", err)
		return err // network errors are retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		c.logger.Warn("llm upstream returned retryable status", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("upstream status %d: %s", resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *HTTPClient) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)
}

func toWireMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
