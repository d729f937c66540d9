package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient implements ModelClient using the local Ollama chat API.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) { c.model = model }
}

// NewOllamaClient creates a new Ollama model client.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	c := &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "llama3",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Complete sends the conversation to Ollama and returns the reply text.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	reqBody := ollamaRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Options:  ollamaOptions{Temperature: 0.3},
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	return withRetry(ctx, "ollama", func() (string, error) {
		return c.doRequest(ctx, body)
	})
}

func (c *OllamaClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", ollamaResp.Error)
	}

	if ollamaResp.Message.Content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return ollamaResp.Message.Content, nil
}
