package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSkills(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple skills",
			text: "Experienced with Python, SQL and Docker in production.",
			want: []string{"docker", "python", "sql"},
		},
		{
			name: "whole word only",
			text: "Built services with django templates.",
			// "go" must not match inside "django".
			want: []string{"django"},
		},
		{
			name: "multi word and punctuated terms",
			text: "Set up CI/CD pipelines and scikit-learn models on k8s.",
			want: []string{"ci/cd", "k8s", "scikit-learn"},
		},
		{
			name: "case insensitive",
			text: "KUBERNETES and TypeScript",
			want: []string{"kubernetes", "typescript"},
		},
		{
			name: "deduplicated",
			text: "python python PYTHON",
			want: []string{"python"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := e.Extract(tt.text)
			assert.Equal(t, tt.want, fields.Skills)
		})
	}
}

func TestExtractTitles(t *testing.T) {
	e := NewExtractor()

	fields := e.Extract("Jane Doe\nSenior Python Developer at Acme\nPreviously Data Engineer")
	assert.Contains(t, fields.Titles, "senior python developer")
	assert.Contains(t, fields.Titles, "data engineer")

	fields = e.Extract("no recognizable role here")
	assert.Empty(t, fields.Titles)
}

func TestExtractYearsExplicitMention(t *testing.T) {
	e := NewExtractor(WithCurrentYear(2026))

	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "plain mention", text: "over 6 years of backend experience", want: 6},
		{name: "plus suffix", text: "5+ years required", want: 5},
		{name: "largest mention wins", text: "3 years of Go, 8 years of Java", want: 8},
		{name: "yrs abbreviation", text: "10 yrs experience", want: 10},
		{name: "outlier rejected", text: "200 years of experience", want: 0},
		{name: "no signal", text: "fresh graduate", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := e.Extract(tt.text)
			assert.Equal(t, tt.want, fields.YearsExperience)
		})
	}
}

func TestExtractYearsDateRanges(t *testing.T) {
	e := NewExtractor(WithCurrentYear(2026))

	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "closed range", text: "Acme Corp, 2019-2023", want: 4},
		{name: "open range", text: "Globex, 2020 - present", want: 6},
		{name: "ranges summed", text: "2010-2014 at Acme\n2016-2020 at Globex", want: 8},
		{name: "overlap merged", text: "2018-2022 and 2020-2023", want: 5},
		{name: "reversed range ignored", text: "2023-2019", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := e.Extract(tt.text)
			assert.Equal(t, tt.want, fields.YearsExperience)
		})
	}
}

// When an explicit "N years" mention and date ranges disagree, the explicit
// mention wins. Documented policy, not inferred behavior.
func TestExtractYearsTieBreak(t *testing.T) {
	e := NewExtractor(WithCurrentYear(2026))

	fields := e.Extract("7 years of experience\nAcme 2024-2026")
	assert.Equal(t, 7.0, fields.YearsExperience)

	// Date ranges only kick in when no explicit mention exists.
	fields = e.Extract("Acme 2024-2026")
	assert.Equal(t, 2.0, fields.YearsExperience)
}

func TestExtractDeterminism(t *testing.T) {
	e := NewExtractor(WithCurrentYear(2026))
	text := "Senior Python Developer, 5+ years, SQL and Docker required"

	first := e.Extract(text)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, e.Extract(text))
	}
}

func TestExtractCustomVocabulary(t *testing.T) {
	e := NewExtractor(
		WithSkillVocabulary([]string{"cobol"}),
		WithTitleVocabulary([]string{"mainframe operator"}),
	)

	fields := e.Extract("COBOL mainframe operator, 30 years")
	assert.Equal(t, []string{"cobol"}, fields.Skills)
	assert.Equal(t, []string{"mainframe operator"}, fields.Titles)
	assert.Equal(t, 30.0, fields.YearsExperience)
}
