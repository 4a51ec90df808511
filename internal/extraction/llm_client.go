package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/pacer/internal/config"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultMaxTokens        = 200
	defaultTemperature      = 0.1
	defaultTimeout          = 20 * time.Second
	defaultMaxAttempts      = 2
	defaultBaseBackoff      = 500 * time.Millisecond
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// ErrLLMDisabled is returned by NewCompleter when no backend can be built
// from the configuration.
var ErrLLMDisabled = errors.New("language model backend disabled")

// NewCompleter builds the Completer selected by cfg.Provider. It returns
// ErrLLMDisabled when the provider is "disabled" or a hosted provider has no
// API key.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderDisabled:
		return nil, ErrLLMDisabled
	case config.ProviderOpenAI:
		if !cfg.APIKey.IsSet() {
			return nil, fmt.Errorf("%w: openai API key not set", ErrLLMDisabled)
		}
		return newOpenAICompleter(cfg), nil
	case config.ProviderAnthropic:
		if !cfg.APIKey.IsSet() {
			return nil, fmt.Errorf("%w: anthropic API key not set", ErrLLMDisabled)
		}
		return newAnthropicCompleter(cfg), nil
	case config.ProviderOllama:
		return newOllamaCompleter(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// retrier bounds outbound model calls: a rate limit and a small
// number of attempts with exponential backoff.
type retrier struct {
	maxAttempts int
	limiter     *rate.Limiter
}

func newRetrier(maxAttempts int) retrier {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return retrier{
		maxAttempts: maxAttempts,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

// httpSettings holds what both hosted clients share.
type httpSettings struct {
	retrier
	model       string
	apiKey      config.Secret
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func newHTTPSettings(cfg config.LLMConfig, defaultBaseURL string) httpSettings {
	s := httpSettings{
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retrier:     newRetrier(cfg.MaxAttempts),
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	if s.maxTokens == 0 {
		s.maxTokens = defaultMaxTokens
	}
	if s.temperature == 0 {
		s.temperature = defaultTemperature
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	s.httpClient = &http.Client{Timeout: timeout}
	return s
}

// withRetries waits for the limiter, then calls do up to maxAttempts times
// with exponential backoff while the error is retryable.
func (s retrier) withRetries(ctx context.Context, do func(context.Context) (string, error)) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		reply, err := do(ctx)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max attempts exceeded: %w", lastErr)
}

// post sends body as JSON and returns the response body of a 200 reply.
// Network errors, 429 and 5xx are retryable.
func (s httpSettings) post(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(respBody, 200))}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(respBody, 200))
	}
	return respBody, nil
}

// apiError is the error envelope both hosted APIs use.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// openAICompleter talks to the OpenAI chat completions API or any
// compatible server.
type openAICompleter struct {
	httpSettings
}

func newOpenAICompleter(cfg config.LLMConfig) *openAICompleter {
	return &openAICompleter{httpSettings: newHTTPSettings(cfg, defaultOpenAIBaseURL)}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (o *openAICompleter) Model() string { return o.model }

func (o *openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	req := openAIRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	return o.withRetries(ctx, func(ctx context.Context) (string, error) {
		body, err := o.post(ctx, "/v1/chat/completions", req, map[string]string{
			"Authorization": "Bearer " + o.apiKey.Value(),
		})
		if err != nil {
			return "", err
		}

		var resp openAIResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty response from API")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// anthropicCompleter talks to the Anthropic messages API.
type anthropicCompleter struct {
	httpSettings
}

func newAnthropicCompleter(cfg config.LLMConfig) *anthropicCompleter {
	return &anthropicCompleter{httpSettings: newHTTPSettings(cfg, defaultAnthropicBaseURL)}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropicCompleter) Model() string { return a.model }

func (a *anthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	}

	return a.withRetries(ctx, func(ctx context.Context) (string, error) {
		body, err := a.post(ctx, "/v1/messages", req, map[string]string{
			"X-API-Key":         a.apiKey.Value(),
			"Anthropic-Version": "2023-06-01",
		})
		if err != nil {
			return "", err
		}

		var resp anthropicResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		for _, c := range resp.Content {
			if c.Type == "text" || c.Type == "" {
				return c.Text, nil
			}
		}
		return "", fmt.Errorf("empty response from API")
	})
}

// retryableError marks a transient failure.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var (
	_ Completer = (*openAICompleter)(nil)
	_ Completer = (*anthropicCompleter)(nil)
)
