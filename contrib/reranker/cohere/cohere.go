package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/rag/reranker"
)

const defaultEndpoint = "https://api.cohere.com/v1/rerank"

// Client implements Cohere's ReRank API. Unavailability surfaces as an
// error so the caller can decide how to degrade.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	endpoint   string
}

// Option customises the Cohere reranker client.
type Option func(*Client)

// WithModel overrides the default Cohere model (rerank-english-v3.0).
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient swaps the HTTP client (useful for timeouts or proxies).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the Cohere API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// New creates a new Cohere-based reranker.
func New(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     apiKey,
		model:      "rerank-english-v3.0",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float32 `json:"relevance_score"`
	} `json:"results"`
}

// Rank implements reranker.Reranker.
func (c *Client) Rank(ctx context.Context, query string, candidates []reranker.Candidate) ([]reranker.Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", errors.ErrInvalidInput)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("cohere api key missing: %w", errors.ErrUnavailable)
	}

	docTexts := make([]string, len(candidates))
	for i, cand := range candidates {
		docTexts[i] = cand.Text
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docTexts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank call: %w: %v", errors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere rerank returned status %d: %w", resp.StatusCode, errors.ErrUnavailable)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]reranker.Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		results = append(results, reranker.Result{Index: r.Index, Score: r.Score})
	}
	return results, nil
}
