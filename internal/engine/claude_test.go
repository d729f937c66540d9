package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClaudeComplete_SystemOutOfBand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "You keep the site record book." {
			t.Errorf("system = %q", req.System)
		}
		if len(req.Messages) != 3 {
			t.Errorf("messages = %d, want 3 (system removed)", len(req.Messages))
			return
		}
		if req.Messages[0].Role != "user" || req.Messages[1].Role != "assistant" {
			t.Errorf("roles = %q, %q", req.Messages[0].Role, req.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Done, "},{"type":"tool_use"},{"type":"text","text":"closed."}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("ak-test", WithClaudeBaseURL(srv.URL+"/"))
	got, err := c.Complete(context.Background(), conversation)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Done, closed." {
		t.Errorf("Complete = %q, want %q", got, "Done, closed.")
	}
}

func TestClaudeComplete_NoText(t *testing.T) {
	fastRetry(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("ak-test", WithClaudeBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), conversation); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestOllamaComplete_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Model != "qwen2.5" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != len(conversation) {
			t.Errorf("messages = %d, want %d", len(req.Messages), len(conversation))
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"local reply"}}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, WithOllamaModel("qwen2.5"))
	got, err := c.Complete(context.Background(), conversation)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "local reply" {
		t.Errorf("Complete = %q", got)
	}
}

func TestOllamaComplete_Error(t *testing.T) {
	fastRetry(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL)
	if _, err := c.Complete(context.Background(), conversation); err == nil {
		t.Fatal("expected error")
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem(conversation)
	if system != conversation[0].Content {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 3 {
		t.Errorf("rest = %d, want 3", len(rest))
	}

	system, rest = splitSystem(conversation[1:])
	if system != "" || len(rest) != 3 {
		t.Errorf("no system message: got %q and %d messages", system, len(rest))
	}
}
