package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"persona-agent/internal/domain"
	"persona-agent/internal/integrations/groq"
)

const (
	defaultTemperature = 0.5
	defaultMaxTokens   = 500
	defaultTimeout     = 30 * time.Second
)

// ErrEmptyResponse is returned when the upstream accepted the request but
// produced no usable completion text.
var ErrEmptyResponse = errors.New("completion: empty response from model")

// chatAPI is the minimal completion surface the provider requires.
// *groq.Client satisfies this interface.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, in groq.ChatRequest) (groq.ChatResponse, error)
}

// Params tunes a single completion call. Model is required; zero values for
// the rest fall back to provider defaults.
type Params struct {
	Model            string
	Temperature      *float64
	MaxTokens        int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Provider issues chat completions with an overall timeout and a
// primary-to-fallback model transition: when the upstream reports the
// requested model as decommissioned or unknown, the call is retried exactly
// once with the configured fallback model. Every other failure, and a
// failure of the fallback itself, propagates to the caller.
type Provider struct {
	api           chatAPI
	fallbackModel string
	timeout       time.Duration
	logger        *slog.Logger
}

type Option func(*Provider)

func WithFallbackModel(model string) Option {
	return func(p *Provider) {
		p.fallbackModel = strings.TrimSpace(model)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewProvider(api chatAPI, opts ...Option) (*Provider, error) {
	if api == nil {
		return nil, errors.New("completion: chat api must not be nil")
	}
	p := &Provider{
		api:     api,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Complete runs one completion call under the provider timeout.
func (p *Provider) Complete(ctx context.Context, messages []domain.Message, params Params) (domain.CompletionResult, error) {
	if params.Model == "" {
		return domain.CompletionResult{}, errors.New("completion: model must not be empty")
	}
	if len(messages) == 0 {
		return domain.CompletionResult{}, errors.New("completion: messages must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.call(ctx, messages, params, params.Model)
	if err == nil {
		return result, nil
	}

	if p.fallbackModel != "" && p.fallbackModel != params.Model && isModelUnavailable(err) {
		p.logger.Warn("model unavailable, retrying with fallback",
			"model", params.Model,
			"fallback", p.fallbackModel,
		)
		return p.call(ctx, messages, params, p.fallbackModel)
	}
	return domain.CompletionResult{}, err
}

func (p *Provider) call(ctx context.Context, messages []domain.Message, params Params, model string) (domain.CompletionResult, error) {
	temperature := defaultTemperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	resp, err := p.api.CreateChatCompletion(ctx, groq.ChatRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      &temperature,
		MaxTokens:        maxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.CompletionResult{}, fmt.Errorf("completion: %w", ctx.Err())
		}
		return domain.CompletionResult{}, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.CompletionResult{}, ErrEmptyResponse
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}
	return domain.CompletionResult{
		Text:      resp.Choices[0].Message.Content,
		ModelUsed: modelUsed,
		Usage:     resp.Usage,
	}, nil
}

func isModelUnavailable(err error) bool {
	var statusErr *groq.HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.IsModelUnavailable()
}
