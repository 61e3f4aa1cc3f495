// Package ai defines the boundaries to the pre-trained text classification
// and embedding services, and HTTP clients for both.
package ai

import (
	"context"
	"errors"
	"time"

	"github.com/reclaimhub/wastex/internal/common"
)

// Service availability errors. A handle that has not been configured reports
// these rather than failing on a nil dereference.
var (
	// ErrClassifierUnavailable indicates the classifier service cannot be
	// reached or has not been configured. Callers recover by substituting
	// the Unknown category.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrEmbedderUnavailable indicates the embedding service cannot be
	// reached or has not been configured. There is no meaningful fallback
	// vector, so this error is fatal to the requesting operation.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
)

// retryOptions governs retries for both service clients. Short and bounded:
// these calls sit on interactive request paths.
var retryOptions = common.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

// Classifier maps a text span to a category label.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Embedder maps text to a fixed-dimension numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// Config holds connection settings for the AI services.
type Config struct {
	ClassifierURL string
	EmbedderURL   string
	APIKey        string
	Dimensions    int
	Timeout       time.Duration
	CacheTTL      time.Duration
}
