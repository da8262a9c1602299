// Package textgen is a minimal client for an OpenAI-compatible chat
// completions endpoint. It sends a single user message and returns the first
// choice's content; the service layer supplies the prompt and the max token
// budget per operation.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quickai/go-quickai-backend/internal/clients"
)

// defaultTemperature matches the upstream generation settings for every
// operation in this service.
const defaultTemperature = 0.7

// Client calls the chat completions API. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

// New returns a Client for the OpenAI-compatible API rooted at baseURL.
// When httpc is nil a client with a 60s timeout is used, since generation
// calls are slow.
func New(baseURL, apiKey, model string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = clients.NewHTTPClient(60 * time.Second)
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, model: model, httpc: httpc}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the generated
// content. maxTokens <= 0 leaves the budget to the provider default. Exactly
// one HTTP call is made; any failure is terminal for this request.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("textgen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", clients.StatusError("textgen", resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("textgen: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("textgen: response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}
