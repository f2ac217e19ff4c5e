package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/deepassist-go/internal/config"
)

type mockLLM struct {
	reqs   []openai.ChatCompletionRequest
	resp   openai.ChatCompletionResponse
	err    error
	models []string
}

func (m *mockLLM) CreateChatCompletion(_ context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.reqs = append(m.reqs, r)
	return m.resp, m.err
}

func (m *mockLLM) ListModels(context.Context) (openai.ModelsList, error) {
	var out openai.ModelsList
	for _, id := range m.models {
		out.Models = append(out.Models, openai.Model{ID: id})
	}
	return out, m.err
}

var testCfg = config.LLMConfig{Model: "deepseek-r1:1.5b", Temperature: 0.3}

func TestComplete_SendsFixedParameters(t *testing.T) {
	m := &mockLLM{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "done"}}},
	}}
	c := NewCompleter(m, testCfg)

	prompt := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: "s"}}
	out, err := c.Complete(context.Background(), prompt)
	require.NoError(t, err)
	require.Equal(t, "done", out)

	require.Len(t, m.reqs, 1)
	req := m.reqs[0]
	require.Equal(t, "deepseek-r1:1.5b", req.Model)
	require.InDelta(t, 0.3, req.Temperature, 1e-6)
	require.Equal(t, prompt, req.Messages)
	require.False(t, req.Stream)
	require.Zero(t, req.MaxTokens)
	require.Empty(t, req.Stop)
}

func TestComplete_BackendError(t *testing.T) {
	c := NewCompleter(&mockLLM{err: errors.New("connection refused")}, testCfg)

	_, err := c.Complete(context.Background(), nil)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "connection refused", err.Error())
}

func TestComplete_NoChoices(t *testing.T) {
	c := NewCompleter(&mockLLM{}, testCfg)

	_, err := c.Complete(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
}

func TestWaitReady(t *testing.T) {
	c := NewCompleter(&mockLLM{models: []string{"other", "deepseek-r1:1.5b"}}, testCfg)
	require.NoError(t, c.WaitReady(context.Background(), 10*time.Millisecond))

	missing := NewCompleter(&mockLLM{models: []string{"other"}}, testCfg)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := missing.WaitReady(ctx, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestNewClient_OpenAICompatibleServer exercises the real go-openai client
// against a fake Ollama /v1 endpoint.
func TestNewClient_OpenAICompatibleServer(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := testCfg
	cfg.BaseURL = srv.URL + "/v1"
	cfg.APIKey = "ollama"
	c := NewCompleter(NewClient(cfg), cfg)

	out, err := c.Complete(context.Background(), []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}})
	require.NoError(t, err)
	require.Equal(t, "pong", out)
	require.Equal(t, "deepseek-r1:1.5b", got.Model)
	require.Len(t, got.Messages, 1)
}

func TestNewClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model \"nope\" not found","type":"api_error"}}`))
	}))
	defer srv.Close()

	cfg := testCfg
	cfg.BaseURL = srv.URL + "/v1"
	c := NewCompleter(NewClient(cfg), cfg)

	_, err := c.Complete(context.Background(), nil)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	require.Contains(t, err.Error(), "not found")
}
