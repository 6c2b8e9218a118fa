package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var qdrantTracer = otel.Tracer("resume-match-go/storage/qdrant")

// qdrantPointIDNamespace is a dedicated namespace for deriving deterministic
// Qdrant point IDs from resume content IDs. Same resume content, same point:
// re-indexing upserts instead of duplicating.
var qdrantPointIDNamespace = uuid.Must(uuid.FromString("7f1a3c6e-9d42-4f0b-b1c5-2a84e60d93af"))

// VectorIndex is the nearest-neighbor store the ranking pipeline retrieves
// candidates from.
type VectorIndex interface {
	// UpsertResume stores (or replaces) one resume point.
	UpsertResume(ctx context.Context, record *types.ResumeRecord) error

	// QuerySimilar returns the top-K points nearest to queryVector by
	// cosine similarity, best first.
	QuerySimilar(ctx context.Context, queryVector []float64, topK int) ([]VectorSearchResult, error)

	// DeleteResume removes the point for a resume ID, if present.
	DeleteResume(ctx context.Context, resumeID string) error

	// Count returns the number of stored points.
	Count(ctx context.Context) (int64, error)
}

var _ VectorIndex = (*Qdrant)(nil)

// VectorSearchResult is one retrieval hit: the stored resume reconstructed
// from the point payload plus its cosine similarity to the query.
type VectorSearchResult struct {
	Record     types.ResumeRecord
	Similarity float64
}

// Qdrant talks to a Qdrant server over its HTTP API.
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// QdrantOption customizes the Qdrant client.
type QdrantOption func(*Qdrant)

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant creates a Qdrant client and ensures the configured collection
// exists with the expected vector size.
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant config is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "resumes"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant dimension must be positive, got %d", cfg.Dimension)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     cfg.Dimension,
		distanceMetric: "Cosine",
		httpClient:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure collection %q exists: %w", collectionName, err)
	}
	return q, nil
}

// PointID returns the deterministic Qdrant point ID for a resume ID.
func PointID(resumeID string) string {
	return uuid.NewV5(qdrantPointIDNamespace, resumeID).String()
}

func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	status, err := q.doRequestWithStatus(ctx, http.MethodGet, "/collections/"+q.collectionName, nil, &info)
	if err != nil && status != http.StatusNotFound {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	if status == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		return q.createCollection(ctx)
	}

	existingSize := info.Result.Config.Params.Vectors.Size
	existingDistance := info.Result.Config.Params.Vectors.Distance
	// A collection built for a different embedding provider cannot be
	// reused; fail fast instead of mixing dimensions.
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		err := fmt.Errorf("collection %q has size=%d distance=%s, expected size=%d distance=%s",
			q.collectionName, existingSize, existingDistance, q.vectorSize, q.distanceMetric)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}

	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collectionName, body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

const payloadTextLimit = 2000

// UpsertResume stores one resume as a single point keyed by the
// deterministic point ID of its content hash.
func (q *Qdrant) UpsertResume(ctx context.Context, record *types.ResumeRecord) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", record.ID),
	)

	if len(record.Embedding) != q.vectorSize {
		err := fmt.Errorf("vector dimension (%d) does not match collection dimension (%d)",
			len(record.Embedding), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	payload := map[string]interface{}{
		"resume_id":        record.ID,
		"text":             truncateString(record.Text, payloadTextLimit),
		"skills":           record.Fields.Skills,
		"titles":           record.Fields.Titles,
		"years_experience": record.Fields.YearsExperience,
	}
	for k, v := range record.Metadata {
		payload["meta_"+k] = v
	}

	body := map[string]interface{}{
		"points": []interface{}{
			map[string]interface{}{
				"id":      PointID(record.ID),
				"vector":  record.Embedding,
				"payload": payload,
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPut, path, body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// QuerySimilar retrieves the top-K nearest points with payload and vectors.
func (q *Qdrant) QuerySimilar(ctx context.Context, queryVector []float64, topK int) ([]VectorSearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.QuerySimilar",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", topK),
	)

	if len(queryVector) != q.vectorSize {
		err := fmt.Errorf("query vector dimension (%d) does not match collection dimension (%d)",
			len(queryVector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	searchReq := map[string]interface{}{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, searchReq, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	hits := make([]VectorSearchResult, 0, len(result.Result))
	for _, point := range result.Result {
		hits = append(hits, VectorSearchResult{
			Record:     recordFromPayload(point.Payload, point.Vector),
			Similarity: point.Score,
		})
	}

	span.SetAttributes(attribute.Int("search.results.count", len(hits)))
	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// recordFromPayload rebuilds a ResumeRecord from a point payload.
func recordFromPayload(payload map[string]interface{}, vector []float64) types.ResumeRecord {
	record := types.ResumeRecord{Embedding: vector}
	if v, ok := payload["resume_id"].(string); ok {
		record.ID = v
	}
	if v, ok := payload["text"].(string); ok {
		record.Text = v
	}
	record.Fields.Skills = stringSlice(payload["skills"])
	record.Fields.Titles = stringSlice(payload["titles"])
	if v, ok := payload["years_experience"].(float64); ok {
		record.Fields.YearsExperience = v
	}
	for k, v := range payload {
		if len(k) > 5 && k[:5] == "meta_" {
			if s, ok := v.(string); ok {
				if record.Metadata == nil {
					record.Metadata = make(map[string]string)
				}
				record.Metadata[k[5:]] = s
			}
		}
	}
	return record
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ErrPointNotFound is returned when a resume has no point in the index.
var ErrPointNotFound = errors.New("point not found in vector index")

// GetResume fetches the stored point for one resume ID.
func (q *Qdrant) GetResume(ctx context.Context, resumeID string) (*types.ResumeRecord, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.GetResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "retrieve"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
	)

	body := map[string]interface{}{
		"ids":          []string{PointID(resumeID)},
		"with_payload": true,
		"with_vector":  true,
	}

	var result struct {
		Result []struct {
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	if len(result.Result) == 0 {
		return nil, ErrPointNotFound
	}

	record := recordFromPayload(result.Result[0].Payload, result.Result[0].Vector)
	span.SetStatus(codes.Ok, "")
	return &record, nil
}

// DeleteResume removes the point for a resume ID.
func (q *Qdrant) DeleteResume(ctx context.Context, resumeID string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
	)

	body := map[string]interface{}{
		"points": []string{PointID(resumeID)},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Count returns the exact number of stored points.
func (q *Qdrant) Count(ctx context.Context) (int64, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Count",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "count"),
		attribute.String("db.collection", q.collectionName),
	)

	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/count", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, map[string]interface{}{"exact": true}, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("qdrant.points.count", result.Result.Count))
	span.SetStatus(codes.Ok, "")
	return result.Result.Count, nil
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	_, err := q.doRequestWithStatus(ctx, method, path, body, result)
	return err
}

// doRequestWithStatus performs one HTTP call against the Qdrant API,
// returning the status code so callers can distinguish 404.
func (q *Qdrant) doRequestWithStatus(ctx context.Context, method, path string, body interface{}, result interface{}) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return 0, err
		}
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return 0, err
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return 0, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return resp.StatusCode, err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return resp.StatusCode, err
		}
	}

	span.SetStatus(codes.Ok, "")
	return resp.StatusCode, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}
