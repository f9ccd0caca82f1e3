package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// compatDefault is the endpoint and model used when the configuration
// leaves them empty.
type compatDefault struct {
	baseURL string
	prefix  string
	model   string
}

var compatDefaults = map[string]compatDefault{
	"ollama":     {baseURL: "http://localhost:11434", prefix: "/v1", model: "llama3.1"},
	"lmstudio":   {baseURL: "http://localhost:1234", prefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", prefix: "/v1", model: "openai/gpt-4o-mini"},
	"groq":       {baseURL: "https://api.groq.com/openai", prefix: "/v1", model: "llama-3.3-70b-versatile"},
	"xai":        {baseURL: "https://api.x.ai", prefix: "/v1", model: "grok-3-mini"},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-2.0-flash"},
}

// compatProvider is a hosted or local service that exposes the
// OpenAI-compatible /chat/completions endpoint.
type compatProvider struct {
	name string
	base openAICompatClient
}

func newNamedCompat(cfg Config) *compatProvider {
	d := compatDefaults[cfg.Provider]
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	return &compatProvider{name: cfg.Provider, base: newOpenAICompatClient(cfg, d.prefix)}
}

// NewOpenAICompat creates a provider for any OpenAI-compatible server at
// cfg.BaseURL. Requests go to BaseURL + "/v1/chat/completions".
func NewOpenAICompat(cfg Config) Provider {
	return &compatProvider{name: "custom", base: newOpenAICompatClient(cfg, "/v1")}
}

func (p *compatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

// openAICompatClient is the shared HTTP implementation.
type openAICompatClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string
	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newOpenAICompatClient(cfg Config, prefix string) openAICompatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return openAICompatClient{
		cfg:        cfg,
		pathPrefix: prefix,
		client:     &http.Client{Timeout: timeout},
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openAICompatClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	respBody, err := c.doPost(ctx, c.pathPrefix+"/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &ChatResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

const (
	baseRetryDelay    = 2 * time.Second
	minRateLimitDelay = 5 * time.Second
)

// retryableStatusCode returns true for HTTP status codes that warrant a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// doPost sends body as JSON and returns the 200 response body. Network
// errors and retryable statuses are retried with exponential backoff; 429
// responses wait at least Retry-After.
func (c *openAICompatClient) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + path
	delay := time.Duration(0)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if delay == 0 {
				delay = baseRetryDelay * time.Duration(1<<(attempt-1))
			}
			slog.Warn("llm: retrying request",
				"url", url,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = 0
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay = minRateLimitDelay * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					delay = max(delay, time.Duration(seconds)*time.Second)
				}
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// APIError is a non-200 response from a provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the provider answered 429.
func (e *APIError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
