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

// ClaudeClient implements ModelClient using the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// ClaudeOption configures the Claude client.
type ClaudeOption func(*ClaudeClient)

// WithClaudeModel sets the model name.
func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeClient) { c.model = model }
}

// WithClaudeBaseURL overrides the API endpoint (default: https://api.anthropic.com/v1).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *ClaudeClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithClaudeTimeout sets the HTTP timeout for each attempt.
func WithClaudeTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeClient) { c.httpClient.Timeout = d }
}

// NewClaudeClient creates a new Anthropic Claude model client.
func NewClaudeClient(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	c := &ClaudeClient{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		model:   "claude-sonnet-4-20250514",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation to the Anthropic Messages API and returns
// the reply text. The system message travels in the request's system field.
func (c *ClaudeClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)
	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   4096,
		Temperature: 0.3,
		System:      system,
		Messages:    make([]claudeMessage, 0, len(rest)),
	}
	for _, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		reqBody.Messages = append(reqBody.Messages, claudeMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	return withRetry(ctx, "claude", func() (string, error) {
		return c.doRequest(ctx, body)
	})
}

func (c *ClaudeClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if claudeResp.Error != nil {
		return "", fmt.Errorf("api error: %s", claudeResp.Error.Message)
	}

	var text strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return text.String(), nil
}
