package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwenda/kazi/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestComplete_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request structure.
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("expected X-API-Key test-key, got %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Anthropic-Version") != apiVersion {
			t.Errorf("expected version header %q, got %q", apiVersion, r.Header.Get("Anthropic-Version"))
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "claude-sonnet-4-20250514" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if req.System != "You are a planner." {
			t.Errorf("unexpected system prompt %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Fatalf("expected single user message, got %+v", req.Messages)
		}
		if req.Temperature != 0.1 {
			t.Errorf("expected temperature 0.1, got %v", req.Temperature)
		}

		resp := apiResponse{
			Content:    []apiContentBlock{{Type: "text", Text: "A plan."}},
			StopReason: "end_turn",
			Usage:      apiUsage{InputTokens: 12, OutputTokens: 3},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient("test-key", "claude-sonnet-4-20250514", discardLogger(), WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), &llm.Request{
		SystemPrompt: "You are a planner.",
		Prompt:       "Plan a todo app.",
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "A plan." {
		t.Errorf("content = %q, want %q", resp.Content, "A plan.")
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("stop reason = %q, want end_turn", resp.StopReason)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if !resp.Usage.Reported() {
		t.Error("expected Reported() to be true")
	}
}

func TestComplete_MultipleTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := apiResponse{
			Content: []apiContentBlock{
				{Type: "text", Text: "part one "},
				{Type: "text", Text: "part two"},
			},
			StopReason: "end_turn",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient("test-key", "claude-sonnet-4-20250514", discardLogger(), WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), &llm.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "part one part two" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.Reported() {
		t.Error("expected no reported usage")
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"rate limited"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "claude-sonnet-4-20250514", discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Complete(context.Background(), &llm.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestComplete_DefaultMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.MaxTokens != defaultMaxToken {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, defaultMaxToken)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiResponse{StopReason: "end_turn"})
	}))
	defer srv.Close()

	client := NewClient("test-key", "claude-sonnet-4-20250514", discardLogger(), WithBaseURL(srv.URL))
	if _, err := client.Complete(context.Background(), &llm.Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
