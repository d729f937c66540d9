package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GeminiClient implements ModelClient using the Google Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model   string
	timeout time.Duration
}

// WithGeminiModel sets the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) { s.model = model }
}

// WithGeminiTimeout sets the HTTP timeout for each call.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(s *geminiSettings) { s.timeout = d }
}

// NewGeminiClient creates a new Google Gemini model client.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	s := geminiSettings{model: "gemini-2.0-flash", timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: s.timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, model: s.model}, nil
}

// Complete sends the conversation to Gemini and returns the reply text. The
// system message becomes the request's system instruction.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: 4096,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: no content in response")
	}
	return text, nil
}
