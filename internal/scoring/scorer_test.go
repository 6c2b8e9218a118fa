package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

func jdWith(skills []string, titles []string, years float64, embedding []float64) *types.JobDescription {
	return &types.JobDescription{
		Text:      "jd",
		Fields:    types.Fields{Skills: skills, Titles: titles, YearsExperience: years},
		Embedding: embedding,
	}
}

func resumeWith(id string, skills []string, titles []string, years float64, embedding []float64) *types.ResumeRecord {
	return &types.ResumeRecord{
		ID:        id,
		Text:      "resume",
		Fields:    types.Fields{Skills: skills, Titles: titles, YearsExperience: years},
		Embedding: embedding,
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestScoreDimensionMismatch(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith(nil, nil, 0, []float64{1, 0, 0})
	resume := resumeWith("r1", nil, nil, 0, []float64{1, 0})

	_, err := s.Score(jd, resume)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCompositeScoreInUnitInterval(t *testing.T) {
	s := NewScorer(Weights{})

	cases := []struct {
		similarity float64
		jd         *types.JobDescription
		resume     *types.ResumeRecord
	}{
		{0.99, jdWith([]string{"python"}, []string{"engineer"}, 5, nil), resumeWith("a", []string{"python"}, []string{"engineer"}, 10, nil)},
		{-0.8, jdWith(nil, nil, 0, nil), resumeWith("b", nil, nil, 0, nil)},
		{0.0, jdWith([]string{"go", "rust"}, nil, 20, nil), resumeWith("c", []string{"java"}, nil, 1, nil)},
		{1.5, jdWith(nil, nil, 0, nil), resumeWith("d", nil, nil, 0, nil)}, // out-of-range input clamped
	}

	for i, tc := range cases {
		result := s.ScoreWithSimilarity(tc.jd, tc.resume, tc.similarity)
		assert.GreaterOrEqual(t, result.CompositeScore, 0.0, "case %d", i)
		assert.LessOrEqual(t, result.CompositeScore, 1.0, "case %d", i)
	}
}

func TestNegativeCosineNeverRewarded(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith(nil, nil, 0, nil)
	resume := resumeWith("r1", nil, nil, 0, nil)

	result := s.ScoreWithSimilarity(jd, resume, -0.9)
	assert.Equal(t, 0.0, result.ComponentScores[types.ComponentSemantic])
}

func TestKeywordExcludedWhenJDHasNoSkills(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith(nil, []string{"engineer"}, 3, nil)
	resume := resumeWith("r1", []string{"python"}, []string{"engineer"}, 5, nil)

	result := s.ScoreWithSimilarity(jd, resume, 0.8)

	_, present := result.ComponentScores[types.ComponentKeyword]
	assert.False(t, present, "keyword component must be absent, not zero")

	// Remaining weights renormalize to 1.0: all other components score
	// their maximum here, so the composite must be exactly 1 * full mass.
	perfect := s.ScoreWithSimilarity(jd, resumeWith("r2", nil, []string{"engineer"}, 5, nil), 1.0)
	assert.InDelta(t, 1.0, perfect.CompositeScore, 1e-9)
}

func TestExperienceComponent(t *testing.T) {
	s := NewScorer(Weights{})

	tests := []struct {
		name        string
		jdYears     float64
		resumeYears float64
		want        float64
	}{
		{"meets requirement exactly", 5, 5, 1.0},
		{"exceeds requirement", 5, 8, 1.0},
		{"no stated requirement", 0, 2, 1.0},
		{"linear falloff", 10, 5, 0.5},
		{"no experience at all", 5, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jd := jdWith(nil, nil, tt.jdYears, nil)
			resume := resumeWith("r", nil, nil, tt.resumeYears, nil)
			result := s.ScoreWithSimilarity(jd, resume, 0.5)
			assert.InDelta(t, tt.want, result.ComponentScores[types.ComponentExperience], 1e-9)
		})
	}
}

// Adding a JD-relevant skill to a resume never decreases its score.
func TestSkillMonotonicity(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith([]string{"python", "sql", "docker"}, nil, 0, nil)

	prev := -1.0
	skills := []string{}
	for _, add := range []string{"python", "sql", "docker"} {
		skills = append(skills, add)
		result := s.ScoreWithSimilarity(jd, resumeWith("r", skills, nil, 0, nil), 0.5)
		assert.GreaterOrEqual(t, result.CompositeScore, prev)
		prev = result.CompositeScore
	}
}

func TestScorerDeterminism(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith([]string{"python", "sql"}, []string{"data engineer"}, 4, nil)
	resume := resumeWith("r1", []string{"python"}, []string{"engineer"}, 2, nil)

	first := s.ScoreWithSimilarity(jd, resume, 0.63)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, s.ScoreWithSimilarity(jd, resume, 0.63))
	}
}

func TestScenarioStrongCandidate(t *testing.T) {
	s := NewScorer(Weights{})
	// JD: "Senior Python Developer, 5+ years, SQL and Docker required"
	jd := jdWith(
		[]string{"docker", "python", "sql"},
		[]string{"senior python developer"},
		5, nil,
	)
	strong := resumeWith("resume-a",
		[]string{"docker", "python", "sql"},
		[]string{"senior python developer"},
		6, nil,
	)

	result := s.ScoreWithSimilarity(jd, strong, 0.85)
	assert.Greater(t, result.CompositeScore, 0.8)
	assert.Equal(t, []string{"docker", "python", "sql"}, result.MatchedSkills)

	joined := fmt.Sprint(result.Explanation)
	assert.Contains(t, joined, "docker, python, sql")
	assert.Contains(t, joined, "title closely matches")
	assert.Contains(t, joined, "Experience requirement met")
}

func TestScenarioWeakCandidate(t *testing.T) {
	s := NewScorer(Weights{})
	jd := jdWith(
		[]string{"docker", "python", "sql"},
		[]string{"senior python developer"},
		5, nil,
	)
	weak := resumeWith("resume-b", []string{"java"}, nil, 1, nil)

	result := s.ScoreWithSimilarity(jd, weak, 0.2)
	assert.Less(t, result.CompositeScore, 0.3)

	joined := fmt.Sprint(result.Explanation)
	assert.Contains(t, joined, "None of the required skills")
	assert.Contains(t, joined, "No recognizable job title")
	assert.Contains(t, joined, "Experience below requirement")
}

func TestCustomWeightProfiles(t *testing.T) {
	keywordHeavy := NewScorer(Weights{Semantic: 0.1, Keyword: 0.7, Title: 0.1, Experience: 0.1})
	semanticHeavy := NewScorer(Weights{Semantic: 0.9, Keyword: 0.04, Title: 0.03, Experience: 0.03})

	jd := jdWith([]string{"python"}, nil, 0, nil)
	resume := resumeWith("r", []string{"python"}, nil, 0, nil)

	// Full keyword overlap, weak semantic signal: the keyword-heavy profile
	// must rate this pair higher.
	kw := keywordHeavy.ScoreWithSimilarity(jd, resume, 0.1)
	sem := semanticHeavy.ScoreWithSimilarity(jd, resume, 0.1)
	assert.Greater(t, kw.CompositeScore, sem.CompositeScore)
}
