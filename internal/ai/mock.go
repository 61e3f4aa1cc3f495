package ai

import (
	"context"
	"sync"
)

// MockClassifier is a deterministic Classifier for tests.
type MockClassifier struct {
	Err      error
	Label    string
	mu       sync.Mutex
	numCalls int
}

// Classify returns the configured label or error.
func (m *MockClassifier) Classify(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	m.numCalls++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Label, nil
}

// Calls returns how many times Classify was invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numCalls
}

// MockEmbedder is a deterministic Embedder for tests. Vectors maps input text
// to fixed vectors; inputs without a mapping get Default.
type MockEmbedder struct {
	Vectors map[string][]float64
	Default []float64
	Err     error
	Dim     int
}

// Embed returns the configured vector for text.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if vec, ok := m.Vectors[text]; ok {
		return vec, nil
	}
	return m.Default, nil
}

// Dimensions returns the configured dimensionality.
func (m *MockEmbedder) Dimensions() int {
	if m.Dim > 0 {
		return m.Dim
	}
	return len(m.Default)
}
