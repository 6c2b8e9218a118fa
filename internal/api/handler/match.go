package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/insight"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/pipeline"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/types"
)

// ErrResumeNotIndexed reports a score request against a resume the index
// does not hold.
var ErrResumeNotIndexed = errors.New("resume is not indexed")

// insightLimit caps how many top results get an LLM narrative per call.
const insightLimit = 5

// MatchHandler serves ranking and single-pair scoring.
type MatchHandler struct {
	ranker  *pipeline.Ranker
	store   *storage.Storage
	insight *insight.Generator // nil when disabled
}

// NewMatchHandler builds the handler. gen may be nil.
func NewMatchHandler(ranker *pipeline.Ranker, store *storage.Storage, gen *insight.Generator) *MatchHandler {
	return &MatchHandler{ranker: ranker, store: store, insight: gen}
}

// RankRequest is the body of a ranking call.
type RankRequest struct {
	JobDescription string `json:"job_description"`
	TopK           int    `json:"top_k,omitempty"`
	ResultCount    int    `json:"result_count,omitempty"`
	WithInsight    bool   `json:"with_insight,omitempty"`
}

// rankCacheKey identifies one ranking computation: same JD text, bounds,
// and insight flag, same answer until the index changes.
func rankCacheKey(req RankRequest) string {
	return types.ContentID(fmt.Sprintf("%s|%d|%d|%t",
		req.JobDescription, req.TopK, req.ResultCount, req.WithInsight))
}

// HandleRank answers a ranking request, serving from cache when possible. A
// short lock collapses concurrent identical requests into one computation.
func (h *MatchHandler) HandleRank(ctx context.Context, req RankRequest) (*types.RankedResponse, error) {
	if req.JobDescription == "" {
		return nil, pipeline.ErrEmptyJobDescription
	}
	if req.TopK > constants.MaxTopK {
		return nil, fmt.Errorf("top_k %d exceeds maximum %d", req.TopK, constants.MaxTopK)
	}

	cacheKey := rankCacheKey(req)
	if cached, err := h.store.Redis.GetRankResult(ctx, cacheKey); err == nil {
		return cached, nil
	} else if !errors.Is(err, storage.ErrCacheMiss) {
		logger.Warn().Err(err).Msg("rank cache read failed, computing directly")
	}

	lockToken := uuid.NewString()
	locked, err := h.store.Redis.AcquireRankLock(ctx, cacheKey, lockToken)
	if err != nil {
		logger.Warn().Err(err).Msg("rank lock unavailable, computing without it")
	}
	if err == nil && !locked {
		// Another request is computing the same ranking; poll the cache
		// briefly before falling back to computing it ourselves.
		if cached := h.waitForCached(ctx, cacheKey); cached != nil {
			return cached, nil
		}
	}
	if locked {
		defer func() {
			if err := h.store.Redis.ReleaseRankLock(ctx, cacheKey, lockToken); err != nil {
				logger.Warn().Err(err).Msg("failed to release rank lock")
			}
		}()
	}

	started := time.Now()
	response, err := h.ranker.Rank(ctx, req.JobDescription, pipeline.RankOptions{
		TopK:        req.TopK,
		ResultCount: req.ResultCount,
	})
	if err != nil {
		return nil, err
	}

	if req.WithInsight && h.insight != nil && len(response.Results) > 0 {
		jd, err := h.ranker.BuildJob(ctx, req.JobDescription)
		if err == nil {
			limit := insightLimit
			if limit > len(response.Results) {
				limit = len(response.Results)
			}
			h.insight.Annotate(ctx, jd, response.Results[:limit])
		}
	}

	if err := h.store.Redis.SetRankResult(ctx, cacheKey, response); err != nil {
		logger.Warn().Err(err).Msg("rank cache write failed")
	}
	h.auditRank(ctx, req, response, time.Since(started))

	return response, nil
}

// waitForCached polls the rank cache while another holder computes.
func (h *MatchHandler) waitForCached(ctx context.Context, cacheKey string) *types.RankedResponse {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
			if cached, err := h.store.Redis.GetRankResult(ctx, cacheKey); err == nil {
				return cached
			}
		}
	}
}

// auditRank appends one audit row; failures only log.
func (h *MatchHandler) auditRank(ctx context.Context, req RankRequest, response *types.RankedResponse, elapsed time.Duration) {
	row := &models.RankQuery{
		JDHash:      types.ContentID(req.JobDescription),
		TopK:        req.TopK,
		ResultCount: len(response.Results),
		Excluded:    response.Excluded,
		DurationMs:  elapsed.Milliseconds(),
	}
	if err := row.SetNotes(response.Notes); err == nil {
		if err := h.store.MySQL.SaveRankQuery(ctx, row); err != nil {
			logger.Warn().Err(err).Msg("failed to record rank audit row")
		}
	}
}

// ScoreRequest is the body of a single-pair scoring call.
type ScoreRequest struct {
	JobDescription string `json:"job_description"`
	ResumeID       string `json:"resume_id"`
	WithInsight    bool   `json:"with_insight,omitempty"`
}

// HandleScore scores one indexed resume against a JD. Unknown resumes map
// to ErrResumeNotIndexed.
func (h *MatchHandler) HandleScore(ctx context.Context, req ScoreRequest) (*types.MatchResult, error) {
	if req.JobDescription == "" {
		return nil, pipeline.ErrEmptyJobDescription
	}
	if req.ResumeID == "" {
		return nil, fmt.Errorf("resume_id is required")
	}

	record, err := h.store.Qdrant.GetResume(ctx, req.ResumeID)
	if errors.Is(err, storage.ErrPointNotFound) {
		return nil, ErrResumeNotIndexed
	}
	if err != nil {
		return nil, fmt.Errorf("load resume %s: %w", req.ResumeID, err)
	}

	result, err := h.ranker.ScoreOne(ctx, req.JobDescription, record)
	if err != nil {
		return nil, err
	}

	if req.WithInsight && h.insight != nil {
		if jd, err := h.ranker.BuildJob(ctx, req.JobDescription); err == nil {
			results := []types.MatchResult{*result}
			h.insight.Annotate(ctx, jd, results)
			result = &results[0]
		}
	}
	return result, nil
}

// StatsResponse summarizes the index for the health/stats endpoint.
type StatsResponse struct {
	IndexedPoints int64 `json:"indexed_points"`
	MetadataRows  int64 `json:"metadata_rows"`
}

// HandleStats reports pool sizes from the vector index and metadata store.
func (h *MatchHandler) HandleStats(ctx context.Context) (*StatsResponse, error) {
	points, err := h.store.Qdrant.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index points: %w", err)
	}
	rows, err := h.store.MySQL.CountResumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("count metadata rows: %w", err)
	}
	return &StatsResponse{IndexedPoints: points, MetadataRows: rows}, nil
}
