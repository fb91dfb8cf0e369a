package pinecone

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

	"persona-agent/internal/integrations/paramstore"
)

// Match is one nearest neighbor returned by the index.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Vector is one record in the index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexStats is the summary returned by describe_index_stats.
type IndexStats struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

type queryRequest struct {
	Vector          []float64 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
	Namespace       string    `json:"namespace"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

type upsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("pinecone: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to a serverless index over its data-plane host URL.
type Client struct {
	host        string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the index behind host (a full URL such as
// https://my-index-abc123.svc.pinecone.io). The API key is fetched from SSM
// on first use.
func NewClient(ps paramstore.Getter, paramPrefix, host string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("pinecone: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("pinecone: parameter prefix must not be empty")
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, errors.New("pinecone: index host must not be empty")
	}
	c := &Client{
		host:        host,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
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
		c.apiKey, c.keyErr = paramstore.SecretToken(ctx, c.getter, c.paramPrefix+"/pinecone-api-key")
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// Query returns up to topK nearest neighbors with metadata included and raw
// vector values excluded.
func (c *Client) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("pinecone: query vector must not be empty")
	}
	if topK <= 0 {
		return nil, errors.New("pinecone: topK must be positive")
	}

	var out queryResponse
	err := c.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		IncludeValues:   false,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// Upsert writes the given vectors into the index and returns the count the
// index acknowledged.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, errors.New("pinecone: vectors must not be empty")
	}

	var out upsertResponse
	if err := c.post(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors}, &out); err != nil {
		return 0, err
	}
	return out.UpsertedCount, nil
}

// DescribeIndexStats reports the index dimension and record count.
func (c *Client) DescribeIndexStats(ctx context.Context) (IndexStats, error) {
	var out IndexStats
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &out); err != nil {
		return IndexStats{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("pinecone: marshal request: %w", err)
	}

	url := c.host + path

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return fmt.Errorf("pinecone: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", apiKey)

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return fmt.Errorf("pinecone: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("pinecone: read response body: %w", err)
	}
	if decErr := json.Unmarshal(buf, out); decErr != nil {
		return fmt.Errorf("pinecone: decode response: %w", decErr)
	}
	return nil
}
