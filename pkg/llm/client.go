// Package llm provides a client for an OpenAI-compatible chat-completions
// service. One request maps to one generated text; there is no retry policy,
// so a failed call is the caller's problem to absorb or surface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/robertvmill/inference-backend/pkg/config"
)

// Message is a single role-tagged message in a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build role-tagged messages.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Client calls an OpenAI-compatible HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client. The API key is required; the request timeout is
// whatever the config says (zero means no client-side timeout at all).
func New(cfg config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  slog.Default().With("component", "llm-client"),
	}, nil
}

// Chat sends one chat-completion request and returns the generated text.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
	}{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", reqBody, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns an embedding vector for the given text. Newlines are
// collapsed to spaces before embedding.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float64, error) {
	reqBody := struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{
		Input: []string{collapseNewlines(text)},
		Model: model,
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", reqBody, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}
	return out.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s returned %s: %s", path, resp.Status, apiErr.Error.Message)
		}
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

func collapseNewlines(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}
