package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
)

// httpEmbedder implements Embedder against the embedding service's HTTP API.
type httpEmbedder struct {
	cache      *embeddingCache
	httpClient *http.Client
	baseURL    string
	apiKey     string
	dimensions int
}

// NewEmbedder creates an embedder client. An empty URL yields a handle in the
// unavailable state; every Embed call then fails with ErrEmbedderUnavailable.
func NewEmbedder(cfg Config) Embedder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 384
	}

	return &httpEmbedder{
		baseURL:    strings.TrimRight(cfg.EmbedderURL, "/"),
		apiKey:     cfg.APIKey,
		dimensions: dimensions,
		cache:      newEmbeddingCache(cfg.CacheTTL),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Dimensions returns the configured vector dimensionality.
func (e *httpEmbedder) Dimensions() int {
	return e.dimensions
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed sends text to the embedding service and returns its semantic vector.
// Whole-text results are cached; the source text is the cache key because a
// vector is recomputed wholesale when its text changes.
func (e *httpEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.baseURL == "" {
		return nil, ErrEmbedderUnavailable
	}

	if vec, ok := e.cache.get(text); ok {
		return vec, nil
	}

	jsonBody, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var body []byte
	err = common.WithRetry(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embed", bytes.NewReader(jsonBody))
		if reqErr != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("failed to create request: %w", reqErr),
				Retryable: false,
			}
		}

		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, doErr := e.httpClient.Do(req)
		if doErr != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %v", ErrEmbedderUnavailable, doErr),
				Retryable: true,
			}
		}
		defer func() { _ = resp.Body.Close() }()

		body, doErr = io.ReadAll(resp.Body)
		if doErr != nil {
			return fmt.Errorf("failed to read response: %w", doErr)
		}

		if resp.StatusCode != http.StatusOK {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: embedder API error (status %d): %s", ErrEmbedderUnavailable, resp.StatusCode, string(body)),
				Retryable: false,
			}
		}
		return nil
	}, retryOptions)
	if err != nil {
		return nil, err
	}

	var response embedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	if len(response.Embedding) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(response.Embedding), e.dimensions)
	}

	e.cache.set(text, response.Embedding)

	return response.Embedding, nil
}
