package pipeline

import (
	"context"
	"errors"
	"testing"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/extract"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

type fakeEmbedder struct {
	vector []float64
	calls  int
	err    error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoembedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeIndex struct {
	hits []storage.VectorSearchResult
	err  error
}

func (f *fakeIndex) UpsertResume(context.Context, *types.ResumeRecord) error { return nil }
func (f *fakeIndex) DeleteResume(context.Context, string) error              { return nil }
func (f *fakeIndex) Count(context.Context) (int64, error)                    { return int64(len(f.hits)), nil }

func (f *fakeIndex) QuerySimilar(_ context.Context, _ []float64, topK int) ([]storage.VectorSearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

type fakeVectorCache struct {
	vectors map[string][]float64
	sets    int
}

func (f *fakeVectorCache) GetJobVector(_ context.Context, jdHash string) ([]float64, error) {
	if v, ok := f.vectors[jdHash]; ok {
		return v, nil
	}
	return nil, storage.ErrCacheMiss
}

func (f *fakeVectorCache) SetJobVector(_ context.Context, jdHash string, vector []float64) error {
	f.vectors[jdHash] = vector
	f.sets++
	return nil
}

const jdText = "Senior python developer needed, 5 years of python and sql experience"

func candidate(id string, fields types.Fields, similarity float64) storage.VectorSearchResult {
	return storage.VectorSearchResult{
		Record: types.ResumeRecord{
			ID:        id,
			Fields:    fields,
			Embedding: []float64{1, 0, 0},
		},
		Similarity: similarity,
	}
}

func newTestRanker(index storage.VectorIndex, cache JobVectorCache, embedder *fakeEmbedder) *Ranker {
	return NewRanker(
		extract.NewExtractor(),
		embedder,
		index,
		scoring.NewScorer(scoring.DefaultWeights()),
		cache,
		4,
	)
}

func TestRankOrdersByCompositeWithStableTieBreak(t *testing.T) {
	fields := types.Fields{
		Skills:          []string{"python", "sql"},
		Titles:          []string{"python developer"},
		YearsExperience: 5,
	}
	index := &fakeIndex{hits: []storage.VectorSearchResult{
		candidate("bbb", fields, 0.9),
		candidate("ccc", fields, 0.5),
		candidate("aaa", fields, 0.9),
	}}
	ranker := newTestRanker(index, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	resp, err := ranker.Rank(context.Background(), jdText, RankOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// Identical fields and similarity for aaa and bbb, so the tie breaks
	// on resume ID, ascending.
	assert.Equal(t, "aaa", resp.Results[0].ResumeID)
	assert.Equal(t, "bbb", resp.Results[1].ResumeID)
	assert.Equal(t, "ccc", resp.Results[2].ResumeID)
	assert.Greater(t, resp.Results[0].CompositeScore, resp.Results[2].CompositeScore)
	assert.Zero(t, resp.Excluded)
}

func TestRankEmptyPoolReturnsEmptyResult(t *testing.T) {
	ranker := newTestRanker(&fakeIndex{}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	resp, err := ranker.Rank(context.Background(), jdText, RankOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Excluded)
}

func TestRankExcludesDimensionMismatchedCandidates(t *testing.T) {
	fields := types.Fields{Skills: []string{"python"}}
	bad := candidate("bad", fields, 0.8)
	bad.Record.Embedding = []float64{1, 0} // wrong dimension

	index := &fakeIndex{hits: []storage.VectorSearchResult{
		candidate("good", fields, 0.7),
		bad,
	}}
	ranker := newTestRanker(index, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	resp, err := ranker.Rank(context.Background(), jdText, RankOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "good", resp.Results[0].ResumeID)
	assert.Equal(t, 1, resp.Excluded)
}

func TestRankNotesWeightRedistributionWhenJDHasNoSkills(t *testing.T) {
	index := &fakeIndex{hits: []storage.VectorSearchResult{
		candidate("aaa", types.Fields{Skills: []string{"python"}}, 0.6),
	}}
	ranker := newTestRanker(index, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	resp, err := ranker.Rank(context.Background(), "We need a wizard of numbers", RankOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Notes)
	assert.Contains(t, resp.Notes[0], "keyword matching skipped")
	require.Len(t, resp.Results, 1)
	assert.NotContains(t, resp.Results[0].ComponentScores, types.ComponentKeyword)
}

func TestRankTruncatesToResultCount(t *testing.T) {
	fields := types.Fields{Skills: []string{"python"}}
	index := &fakeIndex{hits: []storage.VectorSearchResult{
		candidate("aaa", fields, 0.9),
		candidate("bbb", fields, 0.8),
		candidate("ccc", fields, 0.7),
	}}
	ranker := newTestRanker(index, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	resp, err := ranker.Rank(context.Background(), jdText, RankOptions{ResultCount: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "aaa", resp.Results[0].ResumeID)
	assert.Equal(t, "bbb", resp.Results[1].ResumeID)
}

func TestBuildJobUsesCachedVector(t *testing.T) {
	cache := &fakeVectorCache{vectors: map[string][]float64{
		types.ContentID(jdText): {0, 1, 0},
	}}
	embedder := &fakeEmbedder{err: errors.New("embedder must not be called")}
	ranker := newTestRanker(&fakeIndex{}, cache, embedder)

	jd, err := ranker.BuildJob(context.Background(), jdText)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, jd.Embedding)
	assert.Zero(t, embedder.calls, "cached vector should bypass the embedder")
}

func TestBuildJobCachesOnMiss(t *testing.T) {
	cache := &fakeVectorCache{vectors: map[string][]float64{}}
	ranker := newTestRanker(&fakeIndex{}, cache, &fakeEmbedder{vector: []float64{1, 0, 0}})

	_, err := ranker.BuildJob(context.Background(), jdText)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, []float64{1, 0, 0}, cache.vectors[types.ContentID(jdText)])
}

func TestBuildJobExtractsFieldsOnce(t *testing.T) {
	ranker := newTestRanker(&fakeIndex{}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	jd, err := ranker.BuildJob(context.Background(), jdText)
	require.NoError(t, err)
	assert.Contains(t, jd.Fields.Skills, "python")
	assert.Contains(t, jd.Fields.Skills, "sql")
	assert.InDelta(t, 5.0, jd.Fields.YearsExperience, 0.001)
}

func TestRankEmptyJDTextRejected(t *testing.T) {
	ranker := newTestRanker(&fakeIndex{}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	_, err := ranker.Rank(context.Background(), "", RankOptions{})
	assert.ErrorIs(t, err, ErrEmptyJobDescription)
}

func TestRankPropagatesRetrievalError(t *testing.T) {
	index := &fakeIndex{err: errors.New("index unavailable")}
	ranker := newTestRanker(index, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	_, err := ranker.Rank(context.Background(), jdText, RankOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve candidates")
}

func TestRankCancelledContext(t *testing.T) {
	fields := types.Fields{Skills: []string{"python"}}
	hits := make([]storage.VectorSearchResult, 0, 64)
	for i := 0; i < 64; i++ {
		hits = append(hits, candidate(string(rune('a'+i%26))+"x", fields, 0.5))
	}
	ranker := newTestRanker(&fakeIndex{hits: hits}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ranker.Rank(ctx, jdText, RankOptions{TopK: 64})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreOneDimensionMismatchIsError(t *testing.T) {
	ranker := newTestRanker(&fakeIndex{}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	record := &types.ResumeRecord{ID: "r1", Embedding: []float64{1, 0}}
	_, err := ranker.ScoreOne(context.Background(), jdText, record)
	assert.ErrorIs(t, err, scoring.ErrDimensionMismatch)
}

func TestScoreOneReturnsFullResult(t *testing.T) {
	ranker := newTestRanker(&fakeIndex{}, nil, &fakeEmbedder{vector: []float64{1, 0, 0}})

	record := &types.ResumeRecord{
		ID: "r1",
		Fields: types.Fields{
			Skills:          []string{"python", "sql"},
			Titles:          []string{"python developer"},
			YearsExperience: 6,
		},
		Embedding: []float64{1, 0, 0},
	}
	result, err := ranker.ScoreOne(context.Background(), jdText, record)
	require.NoError(t, err)
	assert.Equal(t, "r1", result.ResumeID)
	assert.InDelta(t, 1.0, result.ComponentScores[types.ComponentSemantic], 1e-9)
	assert.NotEmpty(t, result.Explanation)
	assert.ElementsMatch(t, []string{"python", "sql"}, result.MatchedSkills)
}
