// Package types holds the shared data model for resume-to-JD matching.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fields is the structured signal set extracted from raw resume or JD text.
// Skills and titles are normalized to lowercase; YearsExperience is never
// negative. A zero-value Fields is valid and means "no signal found".
type Fields struct {
	Skills          []string `json:"skills"`
	Titles          []string `json:"titles"`
	YearsExperience float64  `json:"years_experience"`
}

// HasSkills reports whether any skills were extracted.
func (f Fields) HasSkills() bool { return len(f.Skills) > 0 }

// HasTitles reports whether any titles were extracted.
func (f Fields) HasTitles() bool { return len(f.Titles) > 0 }

// SkillSet returns the skills as a set for overlap computation.
func (f Fields) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(f.Skills))
	for _, s := range f.Skills {
		set[s] = struct{}{}
	}
	return set
}

// ResumeRecord is one indexed resume. ID is derived from the content so that
// re-indexing the same document upserts instead of duplicating.
type ResumeRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Fields    Fields            `json:"fields"`
	Embedding []float64         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ContentID returns the stable identifier for a resume with the given text:
// the hex SHA-256 of the extracted plain text. Same content, same ID.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// JobDescription is the ephemeral query side of a match. It is built per
// request and never persisted.
type JobDescription struct {
	Text      string    `json:"text"`
	Fields    Fields    `json:"fields"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Component names used in MatchResult.ComponentScores.
const (
	ComponentSemantic   = "semantic"
	ComponentKeyword    = "keyword"
	ComponentTitle      = "title"
	ComponentExperience = "experience"
)

// MatchResult is the outcome of scoring one resume against one JD.
// CompositeScore is in [0, 1]. ComponentScores contains only the components
// that participated; an excluded component (degenerate signal) is absent,
// not zero.
type MatchResult struct {
	ResumeID        string             `json:"resume_id"`
	CompositeScore  float64            `json:"composite_score"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Explanation     []string           `json:"explanation"`
	MatchedSkills   []string           `json:"matched_skills,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	Insight         string             `json:"insight,omitempty"`
}

// RankedResponse is the full output of one ranking call: a total ordering of
// the scored candidates plus batch-level bookkeeping. Excluded counts pairs
// dropped for hard failures (embedding dimension mismatch); Notes carries
// informational degradations such as weight redistribution.
type RankedResponse struct {
	Results  []MatchResult `json:"results"`
	Excluded int           `json:"excluded"`
	Notes    []string      `json:"notes,omitempty"`
}
