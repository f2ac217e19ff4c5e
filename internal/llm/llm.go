package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/deepassist-go/internal/config"
	"github.com/comigor/deepassist-go/internal/logger"
)

// ErrEmptyResponse marks a completion that carried no choices.
var ErrEmptyResponse = errors.New("inference backend returned no choices")

// InferenceError wraps any failure talking to the backend. Its text is the
// underlying error's text; there is no structured code.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// NewClient creates an OpenAI-compatible client. Ollama serves this API under /v1.
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return openai.NewClientWithConfig(config)
}

// Completer sends a whole prompt and waits for a single, non-streamed reply.
type Completer struct {
	client      Client
	model       string
	temperature float32
}

// NewCompleter binds a client to the configured model and temperature.
func NewCompleter(client Client, cfg config.LLMConfig) *Completer {
	return &Completer{client: client, model: cfg.Model, temperature: cfg.Temperature}
}

// Model returns the model identifier requests are sent with.
func (c *Completer) Model() string { return c.model }

// Complete blocks until the backend answers or ctx ends. No retries.
func (c *Completer) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		logger.L.Error("LLM call failed", "model", c.model, "error", err)
		return "", &InferenceError{Err: err}
	}
	if len(resp.Choices) == 0 {
		logger.L.Error("LLM call returned no choices", "model", c.model)
		return "", &InferenceError{Err: ErrEmptyResponse}
	}

	logger.L.Debug("LLM response received",
		"model", c.model,
		"prompt_messages", len(messages),
		"completion_tokens", resp.Usage.CompletionTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

// WaitReady polls the backend's model list until the configured model is
// present or ctx ends.
func (c *Completer) WaitReady(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() error {
		list, err := c.client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		for _, m := range list.Models {
			if m.ID == c.model {
				return nil
			}
		}
		return fmt.Errorf("model not present yet: %s", c.model)
	}

	err := check()
	for err != nil {
		logger.L.Debug("inference backend not ready", "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last: %v)", ctx.Err(), err)
		case <-ticker.C:
			err = check()
		}
	}
	return nil
}
