// Package llm talks to chat-completion APIs. OpenAI goes through the
// official SDK; every other provider speaks the OpenAI-compatible wire
// format over plain HTTP.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build the two messages an analysis request needs.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // openai, ollama, lmstudio, openrouter, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`

	// Timeout bounds a single HTTP attempt. Zero means 5 minutes.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

const (
	defaultTimeout    = 5 * time.Minute
	DefaultMaxRetries = 3
)

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	}
	if _, ok := compatDefaults[cfg.Provider]; ok {
		return newNamedCompat(cfg), nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}

// RequiresAPIKey reports whether the named provider is a hosted service
// that rejects anonymous requests.
func RequiresAPIKey(provider string) bool {
	switch provider {
	case "ollama", "lmstudio", "custom":
		return false
	}
	return true
}
