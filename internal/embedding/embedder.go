// Package embedding provides the text-to-vector collaborator. The provider
// is an OpenAI-compatible HTTP endpoint; the vector dimension is fixed per
// deployment and enforced on every response.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"resume-match-go/internal/config"
	"resume-match-go/internal/ratelimit"
)

// Embedder converts text into fixed-dimension dense vectors. It follows the
// cloudwego/eino embedding contract so eino-based components can consume it
// directly.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error)
	Dimensions() int
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket // nil disables pacing
}

var _ Embedder = (*HTTPEmbedder)(nil)

// Option customizes an HTTPEmbedder.
type Option func(*HTTPEmbedder)

// WithRateLimit paces requests to at most qpm per minute with the given
// burst capacity.
func WithRateLimit(qpm, capacity int) Option {
	return func(e *HTTPEmbedder) {
		if qpm > 0 {
			e.limiter = ratelimit.NewTokenBucket(qpm, capacity)
		}
	}
}

// NewHTTPEmbedder builds an embedder from the embedding config section.
func NewHTTPEmbedder(cfg config.EmbeddingConfig, opts ...Option) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e := &HTTPEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dimensions returns the fixed vector size this embedder produces.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

type embeddingRequest struct {
	Input          interface{} `json:"input"` // string or []string
	Model          string      `json:"model"`
	Dimensions     int         `json:"dimensions,omitempty"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

type embeddingDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type embeddingResponse struct {
	Object string               `json:"object"`
	Data   []embeddingDataEntry `json:"data"`
	Model  string               `json:"model"`
	Error  *embeddingAPIError   `json:"error,omitempty"`
}

// EmbedStrings embeds a batch of texts, preserving input order.
func (e *HTTPEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	options := &einoembedding.Options{}
	einoembedding.GetCommonOptions(options, opts...)
	model := e.model
	if options.Model != nil && *options.Model != "" {
		model = *options.Model
	}

	var input interface{}
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	reqBody := embeddingRequest{
		Input:          input,
		Model:          model,
		Dimensions:     e.dimensions,
		EncodingFormat: "float",
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding API error (%s): %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", len(texts), len(parsed.Data))
	}

	// Responses carry an index per entry; restore request order and enforce
	// the deployment-wide dimension invariant.
	vectors := make([][]float64, len(texts))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", entry.Index)
		}
		if len(entry.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
				e.dimensions, len(entry.Embedding))
		}
		vectors[entry.Index] = entry.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing entry for index %d", i)
		}
	}
	return vectors, nil
}

// EmbedOne embeds a single text.
func (e *HTTPEmbedder) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
