// Package insight turns a scored match into a short reviewer-facing
// narrative using an LLM. It is strictly additive: ranking and scoring never
// wait on it, and any failure degrades to an empty insight.
package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"
)

const systemPrompt = "You are a recruiting assistant. Given a job description summary and a " +
	"candidate's computed match evidence, write a short neutral assessment (2-3 sentences) " +
	"of the fit. Mention concrete skills and experience only when they appear in the " +
	"evidence. Do not invent facts and do not restate the raw scores."

const generateTimeout = 30 * time.Second

// Generator produces match narratives. A nil *Generator is valid and always
// returns empty insights, so wiring can be unconditional.
type Generator struct {
	llm model.ToolCallingChatModel
}

// NewGenerator wraps a chat model.
func NewGenerator(llm model.ToolCallingChatModel) *Generator {
	return &Generator{llm: llm}
}

// Annotate fills Insight on each of the given results. Failures are logged
// and leave the field empty; the results themselves are never altered.
func (g *Generator) Annotate(ctx context.Context, jd *types.JobDescription, results []types.MatchResult) {
	if g == nil || g.llm == nil {
		return
	}
	for i := range results {
		text, err := g.Generate(ctx, jd, &results[i])
		if err != nil {
			logger.Warn().Err(err).
				Str("resume_id", results[i].ResumeID).
				Msg("insight generation failed, leaving empty")
			continue
		}
		results[i].Insight = text
	}
}

// Generate produces one narrative for a scored pair.
func (g *Generator) Generate(ctx context.Context, jd *types.JobDescription, result *types.MatchResult) (string, error) {
	if g == nil || g.llm == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(jd, result)),
	}

	response, err := g.llm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate insight: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

// buildPrompt renders the match evidence as plain text. Only extracted
// signal goes in; raw resume text stays out of the prompt.
func buildPrompt(jd *types.JobDescription, result *types.MatchResult) string {
	var sb strings.Builder

	sb.WriteString("Job requirements:\n")
	if jd.Fields.HasSkills() {
		sb.WriteString("- Skills: " + strings.Join(jd.Fields.Skills, ", ") + "\n")
	}
	if jd.Fields.HasTitles() {
		sb.WriteString("- Role: " + strings.Join(jd.Fields.Titles, ", ") + "\n")
	}
	if jd.Fields.YearsExperience > 0 {
		sb.WriteString(fmt.Sprintf("- Experience: %.0f years\n", jd.Fields.YearsExperience))
	}

	sb.WriteString("\nCandidate evidence:\n")
	if len(result.MatchedSkills) > 0 {
		sb.WriteString("- Matched skills: " + strings.Join(result.MatchedSkills, ", ") + "\n")
	} else {
		sb.WriteString("- Matched skills: none\n")
	}
	for _, line := range result.Explanation {
		sb.WriteString("- " + line + "\n")
	}

	return sb.String()
}
