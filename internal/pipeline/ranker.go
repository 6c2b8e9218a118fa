// Package pipeline runs the end-to-end matching flow: build the job
// description once, retrieve a bounded candidate pool from the vector index,
// score the pool in parallel, and return a total ordering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var rankTracer = otel.Tracer("resume-match-go/pipeline")

// ErrEmptyJobDescription reports a blank ranking query.
var ErrEmptyJobDescription = errors.New("job description text is empty")

// JobVectorCache caches JD embeddings keyed by JD text hash. A nil cache
// disables reuse; every miss and cache failure falls through to the
// embedding provider.
type JobVectorCache interface {
	GetJobVector(ctx context.Context, jdHash string) ([]float64, error)
	SetJobVector(ctx context.Context, jdHash string, vector []float64) error
}

// RankOptions bounds one ranking call. Zero values fall back to the
// configured defaults.
type RankOptions struct {
	TopK        int // candidate pool size retrieved from the index
	ResultCount int // results returned after ordering
}

func (o RankOptions) withDefaults() RankOptions {
	if o.TopK <= 0 {
		o.TopK = constants.DefaultTopK
	}
	if o.TopK > constants.MaxTopK {
		o.TopK = constants.MaxTopK
	}
	if o.ResultCount <= 0 {
		o.ResultCount = constants.DefaultResultCount
	}
	if o.ResultCount > o.TopK {
		o.ResultCount = o.TopK
	}
	return o
}

// Ranker wires extraction, embedding, retrieval, and scoring together. It is
// safe for concurrent use.
type Ranker struct {
	extractor *extract.Extractor
	embedder  embedding.Embedder
	index     storage.VectorIndex
	scorer    *scoring.Scorer
	cache     JobVectorCache // may be nil
	workers   int
}

// NewRanker builds a Ranker. cache may be nil; workers <= 0 falls back to a
// small fixed pool.
func NewRanker(extractor *extract.Extractor, embedder embedding.Embedder, index storage.VectorIndex,
	scorer *scoring.Scorer, cache JobVectorCache, workers int) *Ranker {
	if workers <= 0 {
		workers = 8
	}
	return &Ranker{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		scorer:    scorer,
		cache:     cache,
		workers:   workers,
	}
}

// BuildJob extracts fields from the JD text and resolves its embedding,
// consulting the vector cache first. Extraction happens exactly once per
// call regardless of pool size.
func (r *Ranker) BuildJob(ctx context.Context, jdText string) (*types.JobDescription, error) {
	ctx, span := rankTracer.Start(ctx, "Ranker.BuildJob")
	defer span.End()

	if jdText == "" {
		return nil, ErrEmptyJobDescription
	}

	jd := &types.JobDescription{
		Text:   jdText,
		Fields: r.extractor.Extract(jdText),
	}

	jdHash := types.ContentID(jdText)
	span.SetAttributes(attribute.String("jd.hash", jdHash))

	if r.cache != nil {
		vector, err := r.cache.GetJobVector(ctx, jdHash)
		if err == nil {
			span.SetAttributes(attribute.Bool("jd.vector.cached", true))
			jd.Embedding = vector
			return jd, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("jd vector cache read failed, embedding directly")
		}
	}

	vector, err := r.embedder.EmbedStrings(ctx, []string{jdText})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("embed job description: %w", err)
	}
	jd.Embedding = vector[0]

	if r.cache != nil {
		if err := r.cache.SetJobVector(ctx, jdHash, jd.Embedding); err != nil {
			logger.Warn().Err(err).Msg("jd vector cache write failed")
		}
	}
	return jd, nil
}

// Rank scores the candidate pool against jdText and returns the ordered
// results. An empty index yields an empty response, not an error.
func (r *Ranker) Rank(ctx context.Context, jdText string, opts RankOptions) (*types.RankedResponse, error) {
	ctx, span := rankTracer.Start(ctx, "Ranker.Rank")
	defer span.End()

	opts = opts.withDefaults()
	span.SetAttributes(
		attribute.Int("rank.top_k", opts.TopK),
		attribute.Int("rank.result_count", opts.ResultCount),
	)

	jd, err := r.BuildJob(ctx, jdText)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.QuerySimilar(ctx, jd.Embedding, opts.TopK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	response := &types.RankedResponse{Results: []types.MatchResult{}}
	if !jd.Fields.HasSkills() {
		response.Notes = append(response.Notes,
			"no skills recognized in the job description; keyword matching skipped and its weight redistributed")
	}
	if len(hits) == 0 {
		span.SetAttributes(attribute.Int("rank.pool_size", 0))
		return response, nil
	}

	results, excluded, err := r.scorePool(ctx, jd, hits)
	if err != nil {
		return nil, err
	}
	response.Excluded = excluded

	// Total order: best composite first, resume ID breaks ties so equal
	// scores always come back in the same order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].CompositeScore != results[j].CompositeScore {
			return results[i].CompositeScore > results[j].CompositeScore
		}
		return results[i].ResumeID < results[j].ResumeID
	})

	if len(results) > opts.ResultCount {
		results = results[:opts.ResultCount]
	}
	response.Results = results

	span.SetAttributes(
		attribute.Int("rank.pool_size", len(hits)),
		attribute.Int("rank.excluded", excluded),
		attribute.Int("rank.results", len(results)),
	)
	return response, nil
}

// scorePool scores every retrieval hit with a bounded worker pool. Pairs
// whose vectors disagree with the JD dimension are counted and dropped.
func (r *Ranker) scorePool(ctx context.Context, jd *types.JobDescription, hits []storage.VectorSearchResult) ([]types.MatchResult, int, error) {
	ctx, span := rankTracer.Start(ctx, "Ranker.ScorePool",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	type slot struct {
		result   *types.MatchResult
		excluded bool
	}
	slots := make([]slot, len(hits))

	workers := r.workers
	if workers > len(hits) {
		workers = len(hits)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				hit := hits[i]
				if len(hit.Record.Embedding) != len(jd.Embedding) {
					slots[i] = slot{excluded: true}
					logger.Warn().
						Str("resume_id", hit.Record.ID).
						Int("resume_dim", len(hit.Record.Embedding)).
						Int("jd_dim", len(jd.Embedding)).
						Msg("excluding candidate with mismatched embedding dimension")
					continue
				}
				slots[i] = slot{result: r.scorer.ScoreWithSimilarity(jd, &hit.Record, hit.Similarity)}
			}
		}()
	}

feed:
	for i := range hits {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeTimeout)
		return nil, 0, err
	}

	results := make([]types.MatchResult, 0, len(hits))
	excluded := 0
	for _, s := range slots {
		if s.excluded {
			excluded++
			continue
		}
		if s.result != nil {
			results = append(results, *s.result)
		}
	}
	return results, excluded, nil
}

// ScoreOne scores a single stored resume against jdText. Unlike Rank, a
// dimension mismatch here is a hard error: the caller asked about exactly
// this pair.
func (r *Ranker) ScoreOne(ctx context.Context, jdText string, record *types.ResumeRecord) (*types.MatchResult, error) {
	ctx, span := rankTracer.Start(ctx, "Ranker.ScoreOne")
	defer span.End()

	jd, err := r.BuildJob(ctx, jdText)
	if err != nil {
		return nil, err
	}

	result, err := r.scorer.Score(jd, record)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	return result, nil
}
