package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

type mockChatModel struct {
	response string
	err      error
	prompts  []string
}

func (m *mockChatModel) Generate(_ context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	for _, msg := range messages {
		m.prompts = append(m.prompts, msg.Content)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.response}, nil
}

func (m *mockChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *mockChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func sampleMatch() (*types.JobDescription, *types.MatchResult) {
	jd := &types.JobDescription{
		Fields: types.Fields{
			Skills:          []string{"python", "sql"},
			Titles:          []string{"data engineer"},
			YearsExperience: 5,
		},
	}
	result := &types.MatchResult{
		ResumeID:       "abc123",
		CompositeScore: 0.82,
		MatchedSkills:  []string{"python", "sql"},
		Explanation:    []string{"Matched required skills: python, sql"},
	}
	return jd, result
}

func TestGenerateIncludesEvidenceInPrompt(t *testing.T) {
	llm := &mockChatModel{response: "  Strong fit for the role.  "}
	gen := NewGenerator(llm)

	jd, result := sampleMatch()
	text, err := gen.Generate(context.Background(), jd, result)
	require.NoError(t, err)
	assert.Equal(t, "Strong fit for the role.", text)

	require.Len(t, llm.prompts, 2)
	userPrompt := llm.prompts[1]
	assert.Contains(t, userPrompt, "python, sql")
	assert.Contains(t, userPrompt, "data engineer")
	assert.Contains(t, userPrompt, "5 years")
	assert.Contains(t, userPrompt, "Matched required skills")
}

func TestAnnotateLeavesInsightEmptyOnFailure(t *testing.T) {
	gen := NewGenerator(&mockChatModel{err: errors.New("provider down")})

	jd, result := sampleMatch()
	results := []types.MatchResult{*result}
	gen.Annotate(context.Background(), jd, results)

	assert.Empty(t, results[0].Insight)
	assert.Equal(t, 0.82, results[0].CompositeScore, "failure must not touch the score")
}

func TestAnnotateFillsInsight(t *testing.T) {
	gen := NewGenerator(&mockChatModel{response: "Solid overlap on core skills."})

	jd, result := sampleMatch()
	results := []types.MatchResult{*result}
	gen.Annotate(context.Background(), jd, results)

	assert.Equal(t, "Solid overlap on core skills.", results[0].Insight)
}

func TestNilGeneratorIsInert(t *testing.T) {
	var gen *Generator

	jd, result := sampleMatch()
	text, err := gen.Generate(context.Background(), jd, result)
	require.NoError(t, err)
	assert.Empty(t, text)

	gen.Annotate(context.Background(), jd, []types.MatchResult{*result})
}
