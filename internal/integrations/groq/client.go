package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"persona-agent/internal/domain"
	"persona-agent/internal/integrations/paramstore"
)

// chatRequest is the wire shape for the OpenAI-compatible Chat Completions
// endpoint that Groq exposes.
type chatRequest struct {
	Model            string           `json:"model"`
	Messages         []domain.Message `json:"messages"`
	Temperature      *float64         `json:"temperature,omitempty"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
	Stream           bool             `json:"stream"`
}

// ChatRequest carries everything a single completion call needs. Messages
// and Model are required; the rest are optional tuning parameters.
type ChatRequest struct {
	Model            string
	Messages         []domain.Message
	Temperature      *float64
	MaxTokens        int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// ChatResponse is the minimal response shape returned by the endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int            `json:"index"`
		Message      domain.Message `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage domain.Usage `json:"usage"`
}

// apiErrorBody is the error envelope Groq returns on non-2xx responses.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware
// context and the parsed API error code, so callers classify failures from
// structured fields instead of substring-matching messages.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	APICode    string
	APIMessage string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("groq: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsModelUnavailable reports whether the upstream rejected the requested
// model as decommissioned or unknown. This is the only condition that
// triggers the fallback-model retry.
func (e *HTTPStatusError) IsModelUnavailable() bool {
	switch e.APICode {
	case "model_decommissioned", "model_not_found":
		return true
	}
	return e.StatusCode == http.StatusNotFound
}

// Client is a focused Groq client for chat completions.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key retrieval. The key is fetched from SSM on the first completion
// call and reused for the lifetime of the process.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("groq: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("groq: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.groq.com/openai/v1",
		httpClient:  &http.Client{Timeout: 35 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = paramstore.SecretToken(ctx, c.getter, c.paramPrefix+"/groq-api-key")
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 35 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.groq.com/openai/v1"
	}
	return base + "/chat/completions"
}

// CreateChatCompletion issues one chat completion request and returns the
// decoded response. Non-2xx statuses surface as *HTTPStatusError.
func (c *Client) CreateChatCompletion(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	if in.Model == "" {
		return ChatResponse{}, errors.New("groq: model must not be empty")
	}
	if len(in.Messages) == 0 {
		return ChatResponse{}, errors.New("groq: messages must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return ChatResponse{}, err
	}

	body, err := json.Marshal(chatRequest{
		Model:            in.Model,
		Messages:         in.Messages,
		Temperature:      in.Temperature,
		MaxTokens:        in.MaxTokens,
		TopP:             in.TopP,
		FrequencyPenalty: in.FrequencyPenalty,
		PresencePenalty:  in.PresencePenalty,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("groq: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return ChatResponse{}, fmt.Errorf("groq: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("groq: request failed: %w", err)
	}

	var payload ChatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return ChatResponse{}, fmt.Errorf("groq: decode response: %w", decErr)
	}
	return payload, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		statusErr := &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
		var apiErr apiErrorBody
		if json.Unmarshal(buf, &apiErr) == nil {
			statusErr.APICode = apiErr.Error.Code
			statusErr.APIMessage = apiErr.Error.Message
		}
		return nil, statusErr
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
