package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	result := ParseJSONResponse("```json\n{\"caption\": \"hello\"}\n```")
	if String(result, "caption", "") != "hello" {
		t.Errorf("expected caption='hello', got %v", result)
	}
}

func TestParseJSONResponseWithSurroundingProse(t *testing.T) {
	result := ParseJSONResponse("Sure! Here it is:\n{\"caption\": \"hi\", \"hashtags\": [\"#a\", 3, \"#b\"]}\nEnjoy.")
	if String(result, "caption", "") != "hi" {
		t.Fatalf("expected caption='hi', got %v", result)
	}
	tags := Strings(result, "hashtags")
	if len(tags) != 2 || tags[0] != "#a" || tags[1] != "#b" {
		t.Errorf("unexpected hashtags: %v", tags)
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if ParseJSONResponse("not json at all") != nil {
		t.Error("expected nil for invalid JSON")
	}
	if ParseJSONResponse("") != nil {
		t.Error("expected nil for empty string")
	}
	if ParseJSONResponse("{broken") != nil {
		t.Error("expected nil for unbalanced JSON")
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "generated caption"}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_OPENAI_KEY", "test-key")
	p := NewOpenAIProvider("gpt-4o-mini", "TEST_OPENAI_KEY")
	p.BaseURL = srv.URL

	got, err := p.Generate(context.Background(), "prompt", 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "generated caption" {
		t.Errorf("expected 'generated caption', got %q", got)
	}
}

func TestOpenAIProviderNotConfigured(t *testing.T) {
	p := NewOpenAIProvider("gpt-4o-mini", "SOCIALAGENT_UNSET_KEY_FOR_TEST")
	if p.IsConfigured() {
		t.Fatal("expected provider without key to be unconfigured")
	}
	if _, err := p.Generate(context.Background(), "prompt", 64); err == nil {
		t.Error("expected error without API key")
	}
}

func TestClaudeProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	t.Setenv("TEST_CLAUDE_KEY", "k")
	p := NewClaudeProvider("claude-haiku-4-5", "TEST_CLAUDE_KEY")
	p.BaseURL = srv.URL

	_, err := p.Generate(context.Background(), "prompt", 64)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !se.Retryable() {
		t.Error("expected 503 to be retryable")
	}
}

func TestCreateProviderNone(t *testing.T) {
	if p := CreateProvider(Settings{Provider: "none"}); p != nil {
		t.Errorf("expected nil provider, got %T", p)
	}
}

type flakyProvider struct {
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flakyProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyProvider) IsConfigured() bool { return true }

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestWithRetryRecoversTransientFailure(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: errors.New("connection reset")}
	p := WithRetry(inner, fastRetry())

	got, err := p.Generate(context.Background(), "prompt", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected 'ok', got %q", got)
	}
	if inner.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls.Load())
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("down")}
	p := WithRetry(inner, fastRetry())

	if _, err := p.Generate(context.Background(), "prompt", 10); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if inner.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls.Load())
	}
}

func TestWithRetrySkipsClientErrors(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: &StatusError{Code: http.StatusBadRequest}}
	p := WithRetry(inner, fastRetry())

	if _, err := p.Generate(context.Background(), "prompt", 10); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected a single call for a 400, got %d", inner.calls.Load())
	}
}

func TestWithRetryNilProvider(t *testing.T) {
	if WithRetry(nil, fastRetry()) != nil {
		t.Error("expected nil provider to stay nil")
	}
}
