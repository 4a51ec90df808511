package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/fyrsmithlabs/pacer/internal/config"
)

// ollamaCompleter runs the extraction prompt against a local Ollama server
// through langchaingo. The prompt asks for JSON; parseReply tolerates prose
// around the object.
type ollamaCompleter struct {
	retrier
	llm         llms.Model
	model       string
	maxTokens   int
	temperature float64
}

func newOllamaCompleter(cfg config.LLMConfig) (*ollamaCompleter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return newOllamaCompleterWithModel(llm, cfg), nil
}

func newOllamaCompleterWithModel(llm llms.Model, cfg config.LLMConfig) *ollamaCompleter {
	c := &ollamaCompleter{
		retrier:     newRetrier(cfg.MaxAttempts),
		llm:         llm,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if c.maxTokens == 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	return c
}

func (o *ollamaCompleter) Model() string { return o.model }

// Complete retries any generation failure except cancellation; langchaingo
// does not distinguish transport errors from server replies.
func (o *ollamaCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return o.withRetries(ctx, func(ctx context.Context) (string, error) {
		reply, err := llms.GenerateFromSinglePrompt(ctx, o.llm, system+"\n\nText:\n"+user,
			llms.WithTemperature(o.temperature),
			llms.WithMaxTokens(o.maxTokens),
		)
		if err != nil {
			err = fmt.Errorf("ollama generate: %w", err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			return "", &retryableError{err: err}
		}
		return reply, nil
	})
}

var _ Completer = (*ollamaCompleter)(nil)
