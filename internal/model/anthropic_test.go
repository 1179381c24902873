package model

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/genai"

	"github.com/soochol/blogforge/internal/resilience"
)

func TestAnthropicLLM_Name(t *testing.T) {
	if got := NewAnthropicLLM("k").Name(); got != "anthropic" {
		t.Errorf("Name() = %q, want %q", got, "anthropic")
	}
}

func TestAnthropicLLM_GenerateContent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "Hello there"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 3},
		})
	}))
	defer server.Close()

	llm := NewAnthropicLLM("test-key", WithAnthropicBaseURL(server.URL))
	temp := float32(0.3)
	resp, err := collect(t, llm, textRequest("claude-sonnet-4", "Be brief.", "Hi",
		&genai.GenerateContentConfig{Temperature: &temp}))
	if err != nil {
		t.Fatalf("GenerateContent returned error: %v", err)
	}

	if body["system"] != "Be brief." {
		t.Errorf("system = %v", body["system"])
	}
	if body["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("max_tokens = %v, want %d", body["max_tokens"], defaultMaxTokens)
	}
	if body["temperature"] != 0.3 {
		t.Errorf("temperature = %v", body["temperature"])
	}
	msgs := body["messages"].([]any)
	if len(msgs) != 1 || msgs[0].(map[string]any)["role"] != "user" {
		t.Errorf("messages = %v", msgs)
	}

	if resp.Content.Parts[0].Text != "Hello there" {
		t.Errorf("text = %q", resp.Content.Parts[0].Text)
	}
	if resp.UsageMetadata.TotalTokenCount != 13 {
		t.Errorf("TotalTokenCount = %d, want 13", resp.UsageMetadata.TotalTokenCount)
	}
	if resp.FinishReason != genai.FinishReasonStop {
		t.Errorf("FinishReason = %v", resp.FinishReason)
	}
}

func TestAnthropicLLM_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := collect(t, NewAnthropicLLM("bad", WithAnthropicBaseURL(server.URL)), textRequest("claude", "", "Hi", nil))
	var httpErr *resilience.HTTPError
	if !errors.As(err, &httpErr) || !httpErr.Auth() {
		t.Fatalf("expected auth HTTPError, got %v", err)
	}
	if resilience.Classify(err) != resilience.ClassFatal {
		t.Error("auth errors must not be retried")
	}
}

func TestAnthropicLLM_MaxTokensFromConfig(t *testing.T) {
	llm := NewAnthropicLLM("k")
	body := llm.buildRequestBody(textRequest("claude", "", "Hi", &genai.GenerateContentConfig{MaxOutputTokens: 200}))
	if body.MaxTokens != 200 {
		t.Errorf("MaxTokens = %d, want 200", body.MaxTokens)
	}
	if body.System != "" || body.Temperature != nil {
		t.Errorf("unexpected optional fields: %+v", body)
	}
}

func TestAnthropicLLM_EmptyReplyIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"  "}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	_, err := collect(t, NewAnthropicLLM("k", WithAnthropicBaseURL(server.URL)), textRequest("claude", "", "Hi", nil))
	var invalid *resilience.InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
}
