package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClassifier(t *testing.T) {
	t.Run("returns predicted category", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/classify", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var req classifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "rusted iron pipes 500kg", req.Text)

			_ = json.NewEncoder(w).Encode(classifyResponse{Category: "Metal"})
		}))
		defer server.Close()

		client := NewClassifier(Config{ClassifierURL: server.URL})
		label, err := client.Classify(context.Background(), "rusted iron pipes 500kg")

		require.NoError(t, err)
		assert.Equal(t, "Metal", label)
	})

	t.Run("unconfigured URL is unavailable", func(t *testing.T) {
		client := NewClassifier(Config{})
		_, err := client.Classify(context.Background(), "anything")

		require.ErrorIs(t, err, ErrClassifierUnavailable)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClassifier(Config{ClassifierURL: server.URL})
		_, err := client.Classify(context.Background(), "anything")

		require.ErrorIs(t, err, ErrClassifierUnavailable)
	})

	t.Run("unreachable host is unavailable", func(t *testing.T) {
		client := NewClassifier(Config{ClassifierURL: "http://127.0.0.1:1"})
		_, err := client.Classify(context.Background(), "anything")

		require.ErrorIs(t, err, ErrClassifierUnavailable)
	})
}

func TestHTTPEmbedder(t *testing.T) {
	t.Run("returns vector and caches it", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, "/v1/embed", r.URL.Path)
			_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
		}))
		defer server.Close()

		client := NewEmbedder(Config{EmbedderURL: server.URL, Dimensions: 3})

		vec, err := client.Embed(context.Background(), "copper scrap")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)

		_, err = client.Embed(context.Background(), "copper scrap")
		require.NoError(t, err)
		assert.Equal(t, 1, calls, "second call should hit the cache")
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2}})
		}))
		defer server.Close()

		client := NewEmbedder(Config{EmbedderURL: server.URL, Dimensions: 3})
		_, err := client.Embed(context.Background(), "copper scrap")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("unconfigured URL is unavailable", func(t *testing.T) {
		client := NewEmbedder(Config{})
		_, err := client.Embed(context.Background(), "anything")

		require.ErrorIs(t, err, ErrEmbedderUnavailable)
	})

	t.Run("empty embedding is rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(embedResponse{})
		}))
		defer server.Close()

		client := NewEmbedder(Config{EmbedderURL: server.URL})
		_, err := client.Embed(context.Background(), "anything")

		require.Error(t, err)
	})
}
