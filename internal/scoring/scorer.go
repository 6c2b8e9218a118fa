// Package scoring computes the composite match score between one job
// description and one candidate resume. The score is a weighted blend of
// semantic similarity, skill overlap, title similarity, and experience
// alignment; weights are configuration, and components with no usable
// signal are excluded with their weight redistributed rather than silently
// scored as zero.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"resume-match-go/internal/types"
)

// ErrDimensionMismatch reports that the JD and resume embeddings disagree
// on dimensionality. The pair cannot be scored; callers exclude it from the
// batch rather than aborting the ranking request.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Weights configures the composite blend. The validated defaults mirror the
// production profile; zero-value fields fall back to them.
type Weights struct {
	Semantic   float64 `yaml:"semantic"`
	Keyword    float64 `yaml:"keyword"`
	Title      float64 `yaml:"title"`
	Experience float64 `yaml:"experience"`
}

// DefaultWeights returns the validated default profile.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.55,
		Keyword:    0.25,
		Title:      0.15,
		Experience: 0.05,
	}
}

// applyDefaults fills zero fields from the default profile.
func (w Weights) applyDefaults() Weights {
	defaults := DefaultWeights()
	if w.Semantic == 0 {
		w.Semantic = defaults.Semantic
	}
	if w.Keyword == 0 {
		w.Keyword = defaults.Keyword
	}
	if w.Title == 0 {
		w.Title = defaults.Title
	}
	if w.Experience == 0 {
		w.Experience = defaults.Experience
	}
	return w
}

// Scorer scores (JobDescription, ResumeRecord) pairs. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer builds a Scorer with the given weight profile. Multiple
// profiles can coexist side by side; nothing is read from globals.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights.applyDefaults()}
}

// Score computes the match result for one pair, deriving semantic
// similarity from the two embeddings. Fails only on dimension mismatch.
func (s *Scorer) Score(jd *types.JobDescription, resume *types.ResumeRecord) (*types.MatchResult, error) {
	if len(jd.Embedding) != len(resume.Embedding) {
		return nil, fmt.Errorf("%w: jd=%d resume=%d",
			ErrDimensionMismatch, len(jd.Embedding), len(resume.Embedding))
	}
	return s.ScoreWithSimilarity(jd, resume, CosineSimilarity(jd.Embedding, resume.Embedding)), nil
}

// ScoreWithSimilarity computes the match result using a precomputed cosine
// similarity, typically the one returned by the vector index during
// retrieval. It cannot fail: every other signal degrades to zero.
func (s *Scorer) ScoreWithSimilarity(jd *types.JobDescription, resume *types.ResumeRecord, similarity float64) *types.MatchResult {
	components := map[string]float64{
		// Negative cosine means opposite-direction vectors; that is never
		// rewarded, just floored.
		types.ComponentSemantic:   clamp01(similarity),
		types.ComponentTitle:      titleScore(jd.Fields, resume.Fields),
		types.ComponentExperience: experienceScore(jd.Fields, resume.Fields),
	}

	matched := matchedSkills(jd.Fields, resume.Fields)
	if jd.Fields.HasSkills() {
		components[types.ComponentKeyword] = float64(len(matched)) / float64(len(jd.Fields.Skills))
	}
	// With no extracted JD skills the keyword component is absent entirely;
	// renormalization below redistributes its weight across the rest.

	composite := s.composite(components)

	return &types.MatchResult{
		ResumeID:        resume.ID,
		CompositeScore:  composite,
		ComponentScores: components,
		MatchedSkills:   matched,
		Explanation:     explain(jd.Fields, resume.Fields, components, matched),
		Metadata:        resume.Metadata,
	}
}

// composite is the weighted sum over the present components, renormalized
// by the weight mass actually used so missing signal is not a penalty.
func (s *Scorer) composite(components map[string]float64) float64 {
	weightOf := map[string]float64{
		types.ComponentSemantic:   s.weights.Semantic,
		types.ComponentKeyword:    s.weights.Keyword,
		types.ComponentTitle:      s.weights.Title,
		types.ComponentExperience: s.weights.Experience,
	}

	var sum, used float64
	for name, score := range components {
		w := weightOf[name]
		sum += w * score
		used += w
	}
	if used == 0 {
		return 0
	}
	return clamp01(sum / used)
}

// CosineSimilarity is the cosine of the angle between two equal-length
// vectors, in [-1, 1]. Zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// titleMatchThreshold is the fuzzy similarity above which two titles are
// considered the same role for explanation purposes.
const titleMatchThreshold = 0.6

func titleScore(jd, resume types.Fields) float64 {
	if !jd.HasTitles() || !resume.HasTitles() {
		return 0
	}
	best := 0.0
	for _, jt := range jd.Titles {
		for _, rt := range resume.Titles {
			if r := TokenSetRatio(jt, rt); r > best {
				best = r
			}
		}
	}
	return clamp01(best)
}

func experienceScore(jd, resume types.Fields) float64 {
	if jd.YearsExperience <= 0 || resume.YearsExperience >= jd.YearsExperience {
		return 1.0
	}
	if resume.YearsExperience <= 0 {
		return 0
	}
	return resume.YearsExperience / jd.YearsExperience
}

func matchedSkills(jd, resume types.Fields) []string {
	resumeSet := resume.SkillSet()
	var matched []string
	for _, skill := range jd.Skills {
		if _, ok := resumeSet[skill]; ok {
			matched = append(matched, skill)
		}
	}
	sort.Strings(matched)
	return matched
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
