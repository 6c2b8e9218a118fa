package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentIDStable(t *testing.T) {
	text := "Senior Python developer, 5 years of backend experience."

	first := ContentID(text)
	second := ContentID(text)

	assert.Equal(t, first, second, "identical text must derive the same ID")
	assert.Len(t, first, 64, "hex sha256")
}

func TestContentIDDiffersOnContent(t *testing.T) {
	a := ContentID("python developer")
	b := ContentID("java developer")

	assert.NotEqual(t, a, b)
}

func TestHasSkills(t *testing.T) {
	assert.False(t, Fields{}.HasSkills())
	assert.True(t, Fields{Skills: []string{"go"}}.HasSkills())
}

func TestSkillSet(t *testing.T) {
	set := Fields{Skills: []string{"go", "sql", "go"}}.SkillSet()

	assert.Len(t, set, 2)
	assert.Contains(t, set, "go")
	assert.Contains(t, set, "sql")
}
