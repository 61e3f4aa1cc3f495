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

// httpClassifier implements Classifier against the classification service's
// HTTP API.
type httpClassifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClassifier creates a classifier client. An empty URL yields a handle in
// the unavailable state rather than an error, so startup can proceed and
// ranking can degrade.
func NewClassifier(cfg Config) Classifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &httpClassifier{
		baseURL: strings.TrimRight(cfg.ClassifierURL, "/"),
		apiKey:  cfg.APIKey,
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

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Category string `json:"category"`
}

// Classify sends text to the classification service and returns the predicted
// label.
func (c *httpClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.baseURL == "" {
		return "", ErrClassifierUnavailable
	}

	jsonBody, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var body []byte
	err = common.WithRetry(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(jsonBody))
		if reqErr != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("failed to create request: %w", reqErr),
				Retryable: false,
			}
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			// Transport failures are worth another attempt; the call is a
			// pure read.
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %v", ErrClassifierUnavailable, doErr),
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
				Err:       fmt.Errorf("%w: classifier API error (status %d): %s", ErrClassifierUnavailable, resp.StatusCode, string(body)),
				Retryable: false,
			}
		}
		return nil
	}, retryOptions)
	if err != nil {
		return "", err
	}

	var response classifyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if response.Category == "" {
		return "", fmt.Errorf("no category in classifier response")
	}

	return response.Category, nil
}
