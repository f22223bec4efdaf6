package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "# Rewritten\n\nBody"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.OpenAIConfig{APIKey: "k", Model: "gpt-4", BaseURL: srv.URL + "/v1"},
		openaioption.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), ports.ChatRequest{
		System: "sys", Prompt: "user prompt", MaxTokens: 4000, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Rewritten\n\nBody", resp.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4", body["model"])
	assert.EqualValues(t, 4000, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL},
		openaioption.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), ports.ChatRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "world"}],
			"usage": {"input_tokens": 7, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(config.AnthropicConfig{APIKey: "k", Model: "claude"},
		anthropicoption.WithBaseURL(srv.URL+"/"), anthropicoption.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), ports.ChatRequest{System: "sys", Prompt: "p", Temperature: 0.8, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, int64(10), resp.Usage.TotalTokens)
	assert.EqualValues(t, 100, body["max_tokens"])
}

func TestNewRejectsMissingKey(t *testing.T) {
	t.Parallel()

	_, err := New(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)
	_, err = New(config.LLMConfig{Provider: "cohere"})
	assert.Error(t, err)
}
