package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-embed",
		Dimensions: 3,
	}
}

func TestEmbedStrings(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		// Return entries out of order; the client must restore it.
		resp := embeddingResponse{
			Object: "list",
			Data: []embeddingDataEntry{
				{Object: "embedding", Embedding: []float64{4, 5, 6}, Index: 1},
				{Object: "embedding", Embedding: []float64{1, 2, 3}, Index: 0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	e, err := NewHTTPEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, vectors)
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	e, err := NewHTTPEmbedder(testConfig("http://unused.invalid"))
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedStringsDimensionMismatch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := embeddingResponse{
			Data: []embeddingDataEntry{
				{Embedding: []float64{1, 2, 3, 4, 5}, Index: 0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	e, err := NewHTTPEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedOne(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestEmbedStringsAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Error: &embeddingAPIError{Code: "rate_limited", Message: "slow down"},
		})
	})

	e, err := NewHTTPEmbedder(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedOne(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestNewHTTPEmbedderValidation(t *testing.T) {
	_, err := NewHTTPEmbedder(config.EmbeddingConfig{Dimensions: 3})
	assert.Error(t, err)

	_, err = NewHTTPEmbedder(config.EmbeddingConfig{BaseURL: "http://x", Dimensions: 0})
	assert.Error(t, err)
}
