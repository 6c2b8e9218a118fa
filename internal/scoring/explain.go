package scoring

import (
	"fmt"
	"strings"

	"resume-match-go/internal/types"
)

// maxExplanationReasons bounds how many reasons a result carries.
const maxExplanationReasons = 3

// maxSkillsCited bounds the matched-skill evidence list.
const maxSkillsCited = 5

// explain derives up to three short human-readable reasons from the
// component scores. The rules are fixed and deterministic: concrete
// evidence (skills, title, experience) outranks the semantic signal, and
// each component contributes its positive or negative phrasing depending on
// where it landed.
func explain(jd, resume types.Fields, components map[string]float64, matched []string) []string {
	var reasons []string

	if jd.HasSkills() {
		if len(matched) > 0 {
			cited := matched
			if len(cited) > maxSkillsCited {
				cited = cited[:maxSkillsCited]
			}
			reasons = append(reasons, "Matched required skills: "+strings.Join(cited, ", "))
		} else {
			reasons = append(reasons, "None of the required skills were found")
		}
	}

	if title, ok := components[types.ComponentTitle]; ok {
		switch {
		case title >= titleMatchThreshold:
			reasons = append(reasons, "Job title closely matches the target role")
		case jd.HasTitles() && !resume.HasTitles():
			reasons = append(reasons, "No recognizable job title on the resume")
		case jd.HasTitles() && title < titleMatchThreshold:
			reasons = append(reasons, "Job title differs from the target role")
		}
	}

	if exp, ok := components[types.ComponentExperience]; ok && jd.YearsExperience > 0 {
		if exp >= 1.0 {
			reasons = append(reasons, fmt.Sprintf("Experience requirement met (%.0f of %.0f years)",
				resume.YearsExperience, jd.YearsExperience))
		} else {
			reasons = append(reasons, fmt.Sprintf("Experience below requirement (%.0f of %.0f years)",
				resume.YearsExperience, jd.YearsExperience))
		}
	}

	if semantic, ok := components[types.ComponentSemantic]; ok {
		if semantic >= 0.7 {
			reasons = append(reasons, "Strong overall semantic similarity to the job description")
		} else if semantic <= 0.3 {
			reasons = append(reasons, "Low overall semantic similarity to the job description")
		}
	}

	if len(reasons) > maxExplanationReasons {
		reasons = reasons[:maxExplanationReasons]
	}
	return reasons
}
