package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*llm.openAIProvider"},
		{"ollama", "*llm.compatProvider"},
		{"lmstudio", "*llm.compatProvider"},
		{"openrouter", "*llm.compatProvider"},
		{"groq", "*llm.compatProvider"},
		{"xai", "*llm.compatProvider"},
		{"gemini", "*llm.compatProvider"},
		{"custom", "*llm.compatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, got, tt.wantType)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	tests := map[string]string{
		"doesnotexist": "unknown llm provider: doesnotexist",
		"":             "llm provider not specified",
	}
	for provider, want := range tests {
		_, err := NewProvider(Config{Provider: provider})
		if err == nil || err.Error() != want {
			t.Errorf("NewProvider(%q) error = %v, want %q", provider, err, want)
		}
	}
}

func TestCompatDefaults(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
		wantPath string
	}{
		{"ollama", "http://localhost:11434", "/v1"},
		{"lmstudio", "http://localhost:1234", "/v1"},
		{"openrouter", "https://openrouter.ai/api", "/v1"},
		{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p := newNamedCompat(Config{Provider: tt.provider})
			if p.base.cfg.BaseURL != tt.wantURL {
				t.Errorf("BaseURL = %q, want %q", p.base.cfg.BaseURL, tt.wantURL)
			}
			if p.base.pathPrefix != tt.wantPath {
				t.Errorf("pathPrefix = %q, want %q", p.base.pathPrefix, tt.wantPath)
			}
		})
	}

	p := newNamedCompat(Config{Provider: "ollama", BaseURL: "http://my-server:9999", Model: "m"})
	if p.base.cfg.BaseURL != "http://my-server:9999" || p.base.cfg.Model != "m" {
		t.Errorf("explicit settings overwritten: %+v", p.base.cfg)
	}
}

func TestRequiresAPIKey(t *testing.T) {
	for provider, want := range map[string]bool{"openai": true, "groq": true, "ollama": false, "custom": false} {
		if got := RequiresAPIKey(provider); got != want {
			t.Errorf("RequiresAPIKey(%q) = %v, want %v", provider, got, want)
		}
	}
}

const okCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"a\": 1}"}}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

// noSleep makes retries immediate.
func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestCompatChat(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{System("be brief"), User("hello")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"a": 1}` || resp.PromptTokens != 12 || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
}

func TestCompatRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL}).(*compatProvider)
	var delays []time.Duration
	p.base.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	if _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{User("x")}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(delays) != 1 || delays[0] < minRateLimitDelay {
		t.Errorf("delays = %v, want one delay of at least %v", delays, minRateLimitDelay)
	}
}

func TestCompatDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL}).(*compatProvider)
	p.base.sleep = noSleep

	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{User("x")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCompatGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, MaxRetries: 2}).(*compatProvider)
	p.base.sleep = noSleep

	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{User("x")}})
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("expected max retries error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCompatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompat(Config{BaseURL: srv.URL}).Chat(context.Background(), ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected no choices error, got %v", err)
	}
}

func TestOpenAIProviderChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if body.Model != DefaultOpenAIModel || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("request = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okCompletion))
	}))
	defer srv.Close()

	p := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{System("s"), User("u")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"a": 1}` || resp.TotalTokens != 17 {
		t.Errorf("response = %+v", resp)
	}
}
